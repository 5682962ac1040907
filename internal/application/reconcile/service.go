package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"lumen-backend/internal/application/ledger"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"
)

// Service is the background comparator that re-derives each account's true
// committed total from its live wish set and heals the cached value when
// the two diverge beyond tolerance. Best effort: it uses its own optimistic
// transaction per account and simply skips accounts that are being mutated
// concurrently; the next pass catches them.
type Service struct {
	DB                *gorm.DB
	RatePerHourMicros int64
	// ToleranceMicros absorbs floor-rounding accumulation, not logic bugs.
	ToleranceMicros int64
}

// Report summarizes one reconciliation pass.
type Report struct {
	AccountsChecked int   `json:"accounts_checked"`
	Corrections     int   `json:"corrections"`
	Skipped         int   `json:"skipped"`
	LargestDeltaMks int64 `json:"largest_delta_micros"`
}

// Run executes one full pass over all accounts.
func (s *Service) Run(ctx context.Context, now time.Time) (*Report, error) {
	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Account{}).
		Pluck("account_id", &ids).Error; err != nil {
		return nil, err
	}

	report := &Report{}
	for _, id := range ids {
		report.AccountsChecked++
		delta, corrected, err := s.reconcileAccount(ctx, id, now)
		if err != nil {
			if errors.Is(err, domain.ErrTransactionConflict) {
				// A user operation won the race; it re-anchored the account
				// itself, so skipping is safe.
				report.Skipped++
				continue
			}
			return report, err
		}
		if corrected {
			report.Corrections++
			if abs(delta) > report.LargestDeltaMks {
				report.LargestDeltaMks = abs(delta)
			}
		}
	}
	return report, nil
}

// reconcileAccount compares the cached committed total against the O(N)
// recomputed truth and overwrites the cache when drift exceeds tolerance.
func (s *Service) reconcileAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (int64, bool, error) {
	var delta int64
	var corrected bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := ledger.LoadAccount(tx, accountID)
		if err != nil {
			return err
		}
		active, err := ledger.ActiveObligations(tx, accountID)
		if err != nil {
			return err
		}
		obligations := make([]lumen.Obligation, 0, len(active))
		for _, w := range active {
			obligations = append(obligations, lumen.Obligation{FaceMicros: w.FaceMicros, CreatedAt: w.CreatedAt})
		}
		trueCommitted := lumen.CommittedSum(obligations, s.RatePerHourMicros, now)
		cached := lumen.Decay(acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now)

		delta = cached - trueCommitted
		if abs(delta) <= s.ToleranceMicros {
			return nil
		}

		before := domain.Snapshot(map[string]*domain.Account{"account": acc})
		newGross := lumen.FloorToUnit(lumen.Decay(acc.GrossMicros, s.RatePerHourMicros, acc.AnchorTime, now))
		newCommitted := lumen.FloorToUnit(trueCommitted)
		if err := ledger.SaveAccount(tx, acc, map[string]interface{}{
			"gross_micros":     newGross,
			"committed_micros": newCommitted,
			"anchor_time":      now,
		}); err != nil {
			return err
		}

		acc.GrossMicros, acc.CommittedMicros, acc.AnchorTime = newGross, newCommitted, now
		if err := ledger.Append(tx, &domain.LedgerEntry{
			Type:         domain.EntrySyncCorrection,
			AccountID:    accountID,
			AmountMicros: delta,
			Before:       before,
			After:        domain.Snapshot(map[string]*domain.Account{"account": acc}),
		}); err != nil {
			return err
		}

		log.Info().
			Str("account_id", accountID.String()).
			Int64("delta_micros", delta).
			Int64("true_committed_micros", trueCommitted).
			Msg("reconciliation drift corrected")
		corrected = true
		return nil
	})
	return delta, corrected, err
}

// Start runs reconciliation on a ticker until ctx is cancelled. Failures are
// logged and the loop keeps going; reconciliation is self-healing, not
// critical path.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := s.Run(ctx, time.Now())
				if err != nil {
					log.Error().Err(err).Msg("reconciliation pass failed")
					continue
				}
				if report.Corrections > 0 {
					log.Info().
						Int("checked", report.AccountsChecked).
						Int("corrections", report.Corrections).
						Int("skipped", report.Skipped).
						Msg("reconciliation pass complete")
				}
			}
		}
	}()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
