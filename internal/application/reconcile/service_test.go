package reconcile

import (
	"context"
	"testing"
	"time"

	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupReconcileTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Account{}, &domain.Wish{}, &domain.LedgerEntry{}, &domain.Setting{},
	))
	svc := &Service{
		DB:                db,
		RatePerHourMicros: lumen.UnitsToMicros(lumen.DefaultRatePerHour),
		ToleranceMicros:   lumen.UnitsToMicros(1),
	}
	return svc, db
}

func seedDriftedAccount(t *testing.T, db *gorm.DB, committedUnits int64) uuid.UUID {
	acc := domain.Account{
		GrossMicros:     lumen.UnitsToMicros(2400),
		CommittedMicros: lumen.UnitsToMicros(committedUnits),
		AnchorTime:      now,
		CycleStartedAt:  now,
		CycleLengthDays: 10,
	}
	require.NoError(t, db.Create(&acc).Error)
	return acc.AccountID
}

func addWish(t *testing.T, db *gorm.DB, owner uuid.UUID, faceUnits int64, createdAt time.Time) {
	require.NoError(t, db.Create(&domain.Wish{
		OwnerID:    owner,
		Title:      "live obligation",
		FaceMicros: lumen.UnitsToMicros(faceUnits),
		Status:     domain.WishOpen,
		CreatedAt:  createdAt,
	}).Error)
}

func TestRun_CorrectsDriftedCommitment(t *testing.T) {
	svc, db := setupReconcileTest(t)
	// Cached total says 999, but the only live wish is worth 490 now.
	id := seedDriftedAccount(t, db, 999)
	addWish(t, db, id, 500, now.Add(-time.Hour))

	report, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AccountsChecked)
	assert.Equal(t, 1, report.Corrections)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, lumen.UnitsToMicros(509), report.LargestDeltaMks)

	var acc domain.Account
	require.NoError(t, db.Where("account_id = ?", id).First(&acc).Error)
	assert.Equal(t, lumen.UnitsToMicros(490), acc.CommittedMicros)
	assert.True(t, acc.AnchorTime.Equal(now))

	var entry domain.LedgerEntry
	require.NoError(t, db.Where("type = ?", domain.EntrySyncCorrection).First(&entry).Error)
	assert.Equal(t, id, entry.AccountID)
	assert.Equal(t, lumen.UnitsToMicros(509), entry.AmountMicros)
}

func TestRun_WithinToleranceIsUntouched(t *testing.T) {
	svc, db := setupReconcileTest(t)
	// Off by half a unit: inside the rounding tolerance.
	id := seedDriftedAccount(t, db, 0)
	require.NoError(t, db.Model(&domain.Account{}).
		Where("account_id = ?", id).
		Update("committed_micros", lumen.UnitsToMicros(490)+lumen.MicrosPerUnit/2).Error)
	addWish(t, db, id, 500, now.Add(-time.Hour))

	report, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AccountsChecked)
	assert.Zero(t, report.Corrections)

	var acc domain.Account
	require.NoError(t, db.Where("account_id = ?", id).First(&acc).Error)
	// No re-anchor, no version bump, no audit noise.
	assert.True(t, acc.AnchorTime.Equal(now))
	assert.Equal(t, int64(0), acc.Version)
	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRun_TerminalWishesCarryNoWeight(t *testing.T) {
	svc, db := setupReconcileTest(t)
	// Cache still carries a wish that has since been cancelled.
	id := seedDriftedAccount(t, db, 400)
	require.NoError(t, db.Create(&domain.Wish{
		OwnerID:    id,
		Title:      "already cancelled",
		FaceMicros: lumen.UnitsToMicros(400),
		Status:     domain.WishCancelled,
		CreatedAt:  now.Add(-time.Hour),
	}).Error)

	report, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrections)

	var acc domain.Account
	require.NoError(t, db.Where("account_id = ?", id).First(&acc).Error)
	assert.Equal(t, int64(0), acc.CommittedMicros)
}

func TestRun_SecondPassIsConvergent(t *testing.T) {
	svc, db := setupReconcileTest(t)
	id := seedDriftedAccount(t, db, 999)
	addWish(t, db, id, 500, now.Add(-time.Hour))

	_, err := svc.Run(context.Background(), now)
	require.NoError(t, err)

	// After a correction the cache matches the truth to within a unit, so an
	// immediate second pass finds nothing to do.
	report, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, report.Corrections)

	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).
		Where("type = ?", domain.EntrySyncCorrection).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRun_EmptyDatabase(t *testing.T) {
	svc, _ := setupReconcileTest(t)
	report, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, report.AccountsChecked)
	assert.Zero(t, report.Corrections)
}
