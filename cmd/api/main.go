package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/rentalops/internal/api"
	"github.com/punchamoorthee/rentalops/internal/clock"
	"github.com/punchamoorthee/rentalops/internal/config"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/logger"
	"github.com/punchamoorthee/rentalops/internal/service"
	"github.com/punchamoorthee/rentalops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Layers
	var rentalStore service.Store
	switch cfg.Store {
	case config.StoreDriverMemory:
		mem := store.NewMemory()
		store.SeedMemory(mem, cfg.SeedCount, time.Now().UTC())
		rentalStore = mem
		logger.Warn("using in-memory store; state is lost on restart", "seeded", cfg.SeedCount)
	default:
		pg, err := store.NewStore(ctx, cfg.DBSource)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pg.Close()
		rentalStore = pg
	}

	var idem idempotency.Store
	if cfg.Redis.Addr != "" {
		client := idempotency.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		if err := idempotency.Ping(ctx, client); err != nil {
			log.Fatal(err)
		}
		idem = idempotency.NewRedis(client, cfg.IdempotencyTTL)
	} else {
		idem = idempotency.NewMemory(cfg.IdempotencyTTL)
	}

	svc := service.NewRentalService(rentalStore, clock.NewSystem(),
		service.WithMinimumRentalHours(cfg.MinRentalHours))
	handler := api.NewHandler(svc, idem)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
