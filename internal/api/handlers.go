package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/logger"
)

func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/rentals"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	// 1. Validate Header
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		h.respondError(w, http.StatusBadRequest, "Missing Idempotency-Key", method, endpoint)
		return
	}

	// 2. Read and Hash Body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Stream read error", method, endpoint)
		return
	}
	hash := sha256.Sum256(body)
	reqHash := hex.EncodeToString(hash[:])
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	var req domain.OpenRentalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", method, endpoint)
		return
	}

	// 3. Validation
	if req.UserID == uuid.Nil || req.AssetID == uuid.Nil {
		h.respondError(w, http.StatusUnprocessableEntity, "user_id and asset_id are required", method, endpoint)
		return
	}
	if req.ExpectedReturnDate.IsZero() {
		h.respondError(w, http.StatusUnprocessableEntity, "expected_return_date is required", method, endpoint)
		return
	}

	// 4. Idempotency Reservation
	existing, err := h.idem.Reserve(r.Context(), idemKey, reqHash)
	switch {
	case errors.Is(err, idempotency.ErrConflict):
		h.respondError(w, http.StatusConflict, "Request in progress", method, endpoint)
		return
	case errors.Is(err, idempotency.ErrMismatch):
		h.respondError(w, http.StatusUnprocessableEntity, "Key reuse mismatch", method, endpoint)
		return
	case err != nil:
		logger.ErrorContext(r.Context(), "idempotency reservation failed", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "Idempotency store unavailable", method, endpoint)
		return
	}

	// Idempotent Replay
	if existing != nil {
		httpReqTotal.WithLabelValues(method, endpoint, "replay").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.ResponseStatus)
		w.Write(existing.ResponseBody)
		return
	}

	// 5. Call Engine
	rental, err := h.svc.OpenRental(r.Context(), req.UserID, req.AssetID, req.ExpectedReturnDate)
	if err != nil {
		// Failures are not replayed: a retry with the same key is evaluated afresh.
		if relErr := h.idem.Release(r.Context(), idemKey); relErr != nil {
			logger.WarnContext(r.Context(), "idempotency release failed", "key", idemKey, "error", relErr)
		}
		h.respondFailure(w, r, err, method, endpoint)
		return
	}

	// 6. Finalize Idempotency
	respBody, err := json.Marshal(rental)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Response encoding failed", method, endpoint)
		return
	}
	if err := h.idem.Complete(r.Context(), idemKey, http.StatusCreated, respBody); err != nil {
		logger.WarnContext(r.Context(), "idempotency completion failed", "key", idemKey, "error", err)
	}

	httpReqTotal.WithLabelValues(method, endpoint, "201").Inc()
	w.Header().Set("Location", fmt.Sprintf("/api/v1/rentals/%s", rental.ID))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(respBody)
}

func (h *Handler) ReturnRental(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/rentals/{id}/return"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	id, err := pathID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid rental id", method, endpoint)
		return
	}

	var req domain.CloseRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", method, endpoint)
		return
	}

	rental, err := h.svc.CloseRental(r.Context(), id, req.UserID)
	if err != nil {
		h.respondFailure(w, r, err, method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, rental, method, endpoint)
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "GET", "/rentals/{id}"
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid rental id", method, endpoint)
		return
	}

	rental, err := h.svc.GetRental(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err, method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, rental, method, endpoint)
}

func (h *Handler) ListUserRentals(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "GET", "/users/{id}/rentals"
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid user id", method, endpoint)
		return
	}

	rentals, err := h.svc.ListUserRentals(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err, method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, rentals, method, endpoint)
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "GET", "/assets/{id}"
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid asset id", method, endpoint)
		return
	}

	asset, err := h.svc.GetAsset(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err, method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, asset, method, endpoint)
}
