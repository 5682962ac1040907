package database

import (
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers.
// TranslateError maps unique violations to gorm.ErrDuplicatedKey, which the
// ledger relies on for idempotency-key collisions.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// AutoMigrate runs migrations for the ledger schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Account{},
		&domain.Wish{},
		&domain.LedgerEntry{},
		&domain.Setting{},
	)
}

// SeedSettings inserts the operator knobs when absent. Existing rows win:
// an operator-adjusted capacity survives restarts and redeploys.
func SeedSettings(db *gorm.DB, rebirthUnits, capacityUnits int64) error {
	seeds := []domain.Setting{
		{Key: domain.SettingRebirthAmount, ValueMicros: lumen.UnitsToMicros(rebirthUnits)},
		{Key: domain.SettingVesselCapacity, ValueMicros: lumen.UnitsToMicros(capacityUnits)},
	}
	for _, s := range seeds {
		if err := db.Where(domain.Setting{Key: s.Key}).FirstOrCreate(&s).Error; err != nil {
			return err
		}
	}
	return nil
}
