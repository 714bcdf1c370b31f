// Package idempotency remembers the response to a request carrying an
// Idempotency-Key so that a retried request is answered without re-running it.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	ErrConflict = errors.New("request in progress")
	ErrMismatch = errors.New("key reuse with mismatched payload")
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Record holds the state of a request key.
type Record struct {
	Key            string          `json:"key"`
	RequestHash    string          `json:"request_hash"`
	Status         string          `json:"status"`
	ResponseStatus int             `json:"response_status,omitempty"`
	ResponseBody   json.RawMessage `json:"response_body,omitempty"`
}

// Store claims keys and keeps completed responses.
//
// Reserve claims key for a request body hash. It returns (nil, nil) when the
// caller now owns the key, the stored record when the key was completed with
// the same hash, ErrConflict while another request holds it, and ErrMismatch
// when the key was used for a different body.
type Store interface {
	Reserve(ctx context.Context, key, hash string) (*Record, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	// Release drops a reservation whose request did not produce a response worth replaying.
	Release(ctx context.Context, key string) error
}

// check applies the Reserve rules to an existing record.
func check(existing *Record, hash string) (*Record, error) {
	if existing.RequestHash != hash {
		return nil, ErrMismatch
	}
	if existing.Status != StatusCompleted {
		return nil, ErrConflict
	}
	return existing, nil
}

// Memory is an in-process Store for single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memEntry
}

type memEntry struct {
	rec     Record
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, records: make(map[string]memEntry)}
}

func (m *Memory) Reserve(_ context.Context, key, hash string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.records[key]; ok && m.now().Before(e.expires) {
		rec := e.rec
		return check(&rec, hash)
	}
	m.records[key] = memEntry{
		rec:     Record{Key: key, RequestHash: hash, Status: StatusInProgress},
		expires: m.now().Add(m.ttl),
	}
	return nil, nil
}

func (m *Memory) Complete(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[key]
	if !ok {
		return errors.New("idempotency key not reserved")
	}
	e.rec.Status = StatusCompleted
	e.rec.ResponseStatus = status
	e.rec.ResponseBody = append(json.RawMessage(nil), body...)
	e.expires = m.now().Add(m.ttl)
	m.records[key] = e
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}
