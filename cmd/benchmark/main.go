package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/rentalops/internal/store"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	population  int
	rentalDays  int
)

// Metrics
var (
	totalRequests uint64
	opened201     uint64 // Rentals opened
	replay200     uint64 // Idempotent replays
	conflict409   uint64 // Asset rented or user already renting
	returned200   uint64 // Rentals closed
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&population, "population", 1000, "Number of seeded assets and users")
	flag.IntVar(&rentalDays, "days", 3, "Expected rental length in days")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		userID, assetID := generatePair()

		payload := map[string]interface{}{
			"user_id":              userID,
			"asset_id":             assetID,
			"expected_return_date": time.Now().UTC().AddDate(0, 0, rentalDays),
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/rentals", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		atomic.AddUint64(&totalRequests, 1)

		var rental struct {
			ID uuid.UUID `json:"id"`
		}
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&opened201, 1)
			if err := json.NewDecoder(resp.Body).Decode(&rental); err != nil {
				atomic.AddUint64(&failOther, 1)
			}
		case 200:
			atomic.AddUint64(&replay200, 1)
		case 409:
			atomic.AddUint64(&conflict409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()

		if rental.ID != uuid.Nil {
			returnRental(client, rental.ID, userID)
		}
	}
}

// returnRental closes the rental so the asset goes back into the pool.
func returnRental(client *http.Client, rentalID, userID uuid.UUID) {
	body, _ := json.Marshal(map[string]interface{}{"user_id": userID})
	url := fmt.Sprintf("%s/api/v1/rentals/%s/return", targetURL, rentalID)

	resp, err := client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	if resp.StatusCode == http.StatusOK {
		atomic.AddUint64(&returned200, 1)
		return
	}
	atomic.AddUint64(&failOther, 1)
}

func generatePair() (uuid.UUID, uuid.UUID) {
	user := rand.Intn(population) + 1

	if workload == "hotspot" {
		// Hotspot: 90% of traffic fights over the first two assets
		if rand.Float32() < 0.90 {
			return store.SeedUserID(user), store.SeedAssetID(rand.Intn(2) + 1)
		}
	}

	// Uniform Random
	return store.SeedUserID(user), store.SeedAssetID(rand.Intn(population) + 1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&opened201)
	s200 := atomic.LoadUint64(&replay200)
	f409 := atomic.LoadUint64(&conflict409)
	ret := atomic.LoadUint64(&returned200)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	opens := s201 + s200 + f409
	var conflictRate float64
	if opens > 0 {
		conflictRate = float64(f409) / float64(opens) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"rentals_opened":    s201,
		"success_replay":    s200,
		"rentals_returned":  ret,
		"conflicts":         f409,
		"conflict_rate_pct": conflictRate,
		"errors":            fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
