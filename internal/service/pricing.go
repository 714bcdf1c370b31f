package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/clock"
	"github.com/punchamoorthee/rentalops/internal/domain"
)

// minimumDailyPeriods is the billing floor: a same-day return is charged one full day.
const minimumDailyPeriods = 1

// Charge is the breakdown of a closing price.
type Charge struct {
	DailyPeriods int             `json:"daily_periods"`
	OverdueDays  int             `json:"overdue_days"`
	Usage        decimal.Decimal `json:"usage"`
	Fine         decimal.Decimal `json:"fine"`
	Total        decimal.Decimal `json:"total"`
}

// ComputeCharge prices a rental returned at now.
//
// Billed days are the whole days since start, floored at one. Overdue days are
// now minus the expected return, in whole days; only a positive count is fined.
func ComputeCharge(clk clock.Clock, asset *domain.Asset, rental *domain.Rental, now time.Time) Charge {
	daily := clk.DaysBetween(rental.StartDate, now)
	if daily <= 0 {
		daily = minimumDailyPeriods
	}

	overdue := clk.DaysBetween(rental.ExpectedReturnDate, now)

	fine := decimal.Zero
	if overdue > 0 {
		fine = asset.FineAmount.Mul(decimal.NewFromInt(int64(overdue)))
	}
	usage := asset.DailyRate.Mul(decimal.NewFromInt(int64(daily)))

	return Charge{
		DailyPeriods: daily,
		OverdueDays:  overdue,
		Usage:        usage,
		Fine:         fine,
		Total:        fine.Add(usage),
	}
}
