package settings

import (
	"context"
	"testing"

	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSettingsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Setting{}))
	return &Service{DB: db}, db
}

func TestGet_FallsBackWhenUnseeded(t *testing.T) {
	_, db := setupSettingsTest(t)
	got, err := Get(db, domain.SettingRebirthAmount, lumen.UnitsToMicros(2400))
	require.NoError(t, err)
	assert.Equal(t, lumen.UnitsToMicros(2400), got)
}

func TestGet_PropagatesStoreErrors(t *testing.T) {
	// No migration: the settings table is missing, which is a store fault,
	// not a missing row. The fallback must not paper over it.
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	_, err = Get(db, domain.SettingVesselCapacity, lumen.UnitsToMicros(2400))
	assert.Error(t, err)
}

func TestSetThenGet(t *testing.T) {
	svc, db := setupSettingsTest(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, domain.SettingVesselCapacity, lumen.UnitsToMicros(3000)))
	got, err := Get(db, domain.SettingVesselCapacity, 0)
	require.NoError(t, err)
	assert.Equal(t, lumen.UnitsToMicros(3000), got)

	// Upsert overwrites.
	require.NoError(t, svc.Set(ctx, domain.SettingVesselCapacity, lumen.UnitsToMicros(2000)))
	got, err = Get(db, domain.SettingVesselCapacity, 0)
	require.NoError(t, err)
	assert.Equal(t, lumen.UnitsToMicros(2000), got)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		domain.SettingVesselCapacity: lumen.UnitsToMicros(2000),
	}, all)
}

func TestSet_Rejections(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	ctx := context.Background()

	err := svc.Set(ctx, "decay_rate", lumen.UnitsToMicros(5))
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)

	err = svc.Set(ctx, domain.SettingRebirthAmount, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
