package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

// Seed data uses name-based ids so the seeder, the benchmark and a memory-backed
// server agree on them without a lookup.
var seedNamespace = uuid.MustParse("5b0c7f1e-2d53-4e55-9a39-6a8f1f0e6c01")

var (
	SeedDailyRate  = decimal.NewFromInt(100)
	SeedFineAmount = decimal.NewFromInt(60)
)

// SeedAssetID returns the id of the i-th seeded asset (1-based).
func SeedAssetID(i int) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("asset-%d", i)))
}

func SeedUserID(i int) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("user-%d", i)))
}

func SeedAssets(n int, now time.Time) []domain.Asset {
	assets := make([]domain.Asset, 0, n)
	for i := 1; i <= n; i++ {
		assets = append(assets, domain.Asset{
			ID:         SeedAssetID(i),
			Name:       fmt.Sprintf("Car %d", i),
			DailyRate:  SeedDailyRate,
			FineAmount: SeedFineAmount,
			Available:  true,
			CreatedAt:  now,
		})
	}
	return assets
}

func SeedUsers(n int, now time.Time) []domain.User {
	users := make([]domain.User, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, domain.User{
			ID:            SeedUserID(i),
			Name:          fmt.Sprintf("Driver %d", i),
			Email:         fmt.Sprintf("driver%d@rentalops.local", i),
			DriverLicense: fmt.Sprintf("DL-%06d", i),
			CreatedAt:     now,
		})
	}
	return users
}

// SeedMemory loads n seeded assets and users into m.
func SeedMemory(m *Memory, n int, now time.Time) {
	for _, a := range SeedAssets(n, now) {
		m.AddAsset(a)
	}
	for _, u := range SeedUsers(n, now) {
		m.AddUser(u)
	}
}
