package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/logger"
	"github.com/punchamoorthee/rentalops/internal/service"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentalops_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentalops_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// RentalService is the engine surface the handlers need.
type RentalService interface {
	OpenRental(ctx context.Context, userID, assetID uuid.UUID, expectedReturn time.Time) (*domain.Rental, error)
	CloseRental(ctx context.Context, rentalID, userID uuid.UUID) (*domain.Rental, error)
	GetRental(ctx context.Context, id uuid.UUID) (*domain.Rental, error)
	ListUserRentals(ctx context.Context, userID uuid.UUID) ([]domain.Rental, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
}

type Handler struct {
	svc  RentalService
	idem idempotency.Store
}

func NewHandler(svc RentalService, idem idempotency.Store) *Handler {
	return &Handler{svc: svc, idem: idem}
}

// NewRouter wires every route onto a fresh mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/rentals", h.CreateRental).Methods("POST")
	apiV1.HandleFunc("/rentals/{id}", h.GetRental).Methods("GET")
	apiV1.HandleFunc("/rentals/{id}/return", h.ReturnRental).Methods("POST")
	apiV1.HandleFunc("/users/{id}/rentals", h.ListUserRentals).Methods("GET")
	apiV1.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	return r
}

// statusFor maps engine failure kinds onto HTTP status codes.
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindAssetNotFound, service.KindUserNotFound, service.KindRentalNotFound:
		return http.StatusNotFound
	case service.KindAssetUnavailable, service.KindUserAlreadyRenting:
		return http.StatusConflict
	case service.KindInvalidReturnWindow:
		return http.StatusUnprocessableEntity
	case service.KindCollaboratorFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

// respondFailure writes an engine error with its machine-readable kind.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error, method, endpoint string) {
	code := statusFor(err)
	var e *service.Error
	if !errors.As(err, &e) {
		logger.ErrorContext(r.Context(), "unclassified handler error", "endpoint", endpoint, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
		return
	}
	if e.Transient() {
		logger.ErrorContext(r.Context(), "collaborator failure", "endpoint", endpoint, "error", err)
	}
	h.respondJSON(w, code, map[string]string{"error": e.Message, "kind": string(e.Kind)}, method, endpoint)
}
