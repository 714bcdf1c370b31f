package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/rentalops/internal/clock"
	"github.com/punchamoorthee/rentalops/internal/domain"
)

func TestComputeCharge(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	car := &domain.Asset{
		ID:         uuid.New(),
		DailyRate:  decimal.NewFromInt(100),
		FineAmount: decimal.NewFromInt(60),
	}

	tests := []struct {
		name     string
		expected time.Time
		returned time.Time
		daily    int
		overdue  int
		total    string
	}{
		{
			name:     "same day return is billed one day",
			expected: start.Add(24 * time.Hour),
			returned: start.Add(3 * time.Hour),
			daily:    1,
			overdue:  0,
			total:    "100",
		},
		{
			name:     "two days, one day late",
			expected: start.Add(24 * time.Hour),
			returned: start.Add(48 * time.Hour),
			daily:    2,
			overdue:  1,
			total:    "260",
		},
		{
			name:     "returned exactly on time",
			expected: start.Add(48 * time.Hour),
			returned: start.Add(48 * time.Hour),
			daily:    2,
			overdue:  0,
			total:    "200",
		},
		{
			name:     "early return carries no fine",
			expected: start.Add(72 * time.Hour),
			returned: start.Add(30 * time.Hour),
			daily:    1,
			overdue:  -1,
			total:    "100",
		},
		{
			name:     "late by less than a full day is not fined",
			expected: start.Add(24 * time.Hour),
			returned: start.Add(47 * time.Hour),
			daily:    1,
			overdue:  0,
			total:    "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &domain.Rental{StartDate: start, ExpectedReturnDate: tt.expected}
			c := ComputeCharge(clock.NewSystem(), car, r, tt.returned)

			assert.Equal(t, tt.daily, c.DailyPeriods)
			assert.Equal(t, tt.overdue, c.OverdueDays)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(c.Total), "got %s", c.Total)
		})
	}
}

func TestComputeChargeKeepsCents(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	car := &domain.Asset{
		DailyRate:  decimal.RequireFromString("19.99"),
		FineAmount: decimal.RequireFromString("0.10"),
	}
	r := &domain.Rental{StartDate: start, ExpectedReturnDate: start.Add(48 * time.Hour)}

	c := ComputeCharge(clock.NewSystem(), car, r, start.Add(72*time.Hour))

	assert.Equal(t, "59.97", c.Usage.StringFixed(2))
	assert.Equal(t, "0.10", c.Fine.StringFixed(2))
	assert.Equal(t, "60.07", c.Total.StringFixed(2))
}
