package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lumen-backend/internal/domain"
)

type Service struct {
	DB *gorm.DB
}

// Get reads an economy knob inside the caller's transaction so concurrent
// transactions observe an operator change consistently. The fallback covers
// only a missing row (fresh database before seeding); any other store error
// aborts the caller's transaction rather than settling against a stale value.
func Get(tx *gorm.DB, key string, fallbackMicros int64) (int64, error) {
	var s domain.Setting
	if err := tx.Where("key = ?", key).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallbackMicros, nil
		}
		return 0, err
	}
	return s.ValueMicros, nil
}

// Set upserts an economy knob. Takes effect for every transaction that
// starts after the write commits; no redeploy involved.
func (s *Service) Set(ctx context.Context, key string, valueMicros int64) error {
	if valueMicros < 0 {
		return domain.ErrInvalidAmount
	}
	switch key {
	case domain.SettingVesselCapacity, domain.SettingRebirthAmount:
	default:
		return domain.ErrUnknownSetting
	}
	row := domain.Setting{Key: key, ValueMicros: valueMicros}
	return s.DB.WithContext(ctx).Save(&row).Error
}

// All returns every knob for the admin surface.
func (s *Service) All(ctx context.Context) (map[string]int64, error) {
	var rows []domain.Setting
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.ValueMicros
	}
	return out, nil
}
