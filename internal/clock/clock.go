package clock

import (
	"sync"
	"time"
)

const day = 24 * time.Hour

// Clock supplies the current instant and the whole-unit differences used by rental pricing.
// Differences are b - a, truncated toward zero.
type Clock interface {
	Now() time.Time
	HoursBetween(a, b time.Time) int
	DaysBetween(a, b time.Time) int
}

// HoursBetween returns the number of whole hours from a to b.
func HoursBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Hour)
}

// DaysBetween returns the number of whole 24h days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / day)
}

// System is the wall clock, in UTC.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time                   { return time.Now().UTC() }
func (System) HoursBetween(a, b time.Time) int { return HoursBetween(a, b) }
func (System) DaysBetween(a, b time.Time) int  { return DaysBetween(a, b) }

// Fixed is a manually driven clock.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

func (f *Fixed) HoursBetween(a, b time.Time) int { return HoursBetween(a, b) }
func (f *Fixed) DaysBetween(a, b time.Time) int  { return DaysBetween(a, b) }
