package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lumen-backend/internal/application/settings"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"
)

// Service is the account ledger: the O(1) balance read path, unconditional
// payment, and account creation.
type Service struct {
	DB *gorm.DB
	// RatePerHourMicros is the linear decay rate shared by every balance.
	RatePerHourMicros int64
	// RebirthFallbackMicros backs the Settings row on a fresh database.
	RebirthFallbackMicros int64
	// CycleLengthDays is the default cycle assigned to new accounts.
	CycleLengthDays int
}

// BalanceView is the decayed state of an account at a single instant.
type BalanceView struct {
	AccountID       uuid.UUID `json:"account_id"`
	AvailableMicros int64     `json:"available_micros"`
	GrossMicros     int64     `json:"gross_micros"`
	CommittedMicros int64     `json:"committed_micros"`
	Available       float64   `json:"available"`
	Gross           float64   `json:"gross"`
	Committed       float64   `json:"committed"`
	AnchorTime      time.Time `json:"anchor_time"`
	CycleStartedAt  time.Time `json:"cycle_started_at"`
	CycleEndsAt     time.Time `json:"cycle_ends_at"`
	CycleObserved   bool      `json:"cycle_observed"`
	WishesCreated   int       `json:"wishes_created"`
	WishesResolved  int       `json:"wishes_resolved"`
}

func (s *Service) view(acc *domain.Account, now time.Time) *BalanceView {
	gross := lumen.Decay(acc.GrossMicros, s.RatePerHourMicros, acc.AnchorTime, now)
	committed := lumen.Decay(acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now)
	available := lumen.Available(acc.GrossMicros, acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now)
	return &BalanceView{
		AccountID:       acc.AccountID,
		AvailableMicros: available,
		GrossMicros:     gross,
		CommittedMicros: committed,
		Available:       lumen.MicrosToUnits(available),
		Gross:           lumen.MicrosToUnits(gross),
		Committed:       lumen.MicrosToUnits(committed),
		AnchorTime:      acc.AnchorTime,
		CycleStartedAt:  acc.CycleStartedAt,
		CycleEndsAt:     acc.CycleStartedAt.Add(acc.CycleLength()),
		CycleObserved:   acc.CycleObserved,
		WishesCreated:   acc.WishesCreated,
		WishesResolved:  acc.WishesResolved,
	}
}

// Balance is the O(1) read path: one account row, both cached fields decayed
// to now, no scan of the wish set.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID, now time.Time) (*BalanceView, error) {
	acc, err := LoadAccount(s.DB.WithContext(ctx), accountID)
	if err != nil {
		return nil, err
	}
	return s.view(acc, now), nil
}

// Pay is an unconditional spend: re-read, re-decay, verify, debit, re-anchor,
// all inside one transaction. The availability check never trusts a
// pre-transaction read.
func (s *Service) Pay(ctx context.Context, accountID uuid.UUID, amountMicros int64, now time.Time) (*BalanceView, error) {
	if amountMicros <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	var out *BalanceView
	err := InTx(ctx, s.DB, func(tx *gorm.DB) error {
		acc, err := LoadAccount(tx, accountID)
		if err != nil {
			return err
		}
		gross := lumen.Decay(acc.GrossMicros, s.RatePerHourMicros, acc.AnchorTime, now)
		committed := lumen.Decay(acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now)
		if lumen.Net(acc.GrossMicros, acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now) < amountMicros {
			return domain.ErrInsufficientFunds
		}

		before := domain.Snapshot(map[string]*domain.Account{"account": acc})
		newGross := lumen.FloorToUnit(gross - amountMicros)
		newCommitted := lumen.FloorToUnit(committed)
		if err := SaveAccount(tx, acc, map[string]interface{}{
			"gross_micros":     newGross,
			"committed_micros": newCommitted,
			"anchor_time":      now,
		}); err != nil {
			return err
		}

		acc.GrossMicros, acc.CommittedMicros, acc.AnchorTime, acc.Version = newGross, newCommitted, now, acc.Version+1
		if err := Append(tx, &domain.LedgerEntry{
			Type:         domain.EntryPayment,
			AccountID:    accountID,
			AmountMicros: amountMicros,
			Before:       before,
			After:        domain.Snapshot(map[string]*domain.Account{"account": acc}),
		}); err != nil {
			return err
		}
		out = s.view(acc, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Open creates the ledger document for a newly registered identity, funded
// with the rebirth amount and anchored at now. Runs inside the caller's
// registration transaction.
func (s *Service) Open(tx *gorm.DB, accountID uuid.UUID, now time.Time) (*domain.Account, error) {
	rebirth, err := settings.Get(tx, domain.SettingRebirthAmount, s.RebirthFallbackMicros)
	if err != nil {
		return nil, err
	}
	acc := domain.Account{
		AccountID:       accountID,
		GrossMicros:     rebirth,
		CommittedMicros: 0,
		AnchorTime:      now,
		CycleStartedAt:  now,
		CycleLengthDays: s.CycleLengthDays,
	}
	if err := tx.Create(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// Entries returns the account's audit log, newest first. The log is for
// verification and debugging; live balances never derive from it.
func (s *Service) Entries(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []domain.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("account_id = ? OR counterparty_id = ?", accountID, accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
