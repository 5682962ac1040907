package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"lumen-backend/internal/application/ledger"
	"lumen-backend/internal/application/settings"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"
)

// staleCycles is how many whole cycles an account may sit dormant before the
// new anchor snaps to now instead of the theoretical cycle end; without the
// snap a long-dormant account would be granted a balance that already
// decayed to nothing.
const staleCycles = 2

// Service grants the periodic full refill, re-anchoring decay and
// re-snapshotting the committed total from the live wish set.
type Service struct {
	DB                    *gorm.DB
	RatePerHourMicros     int64
	RebirthFallbackMicros int64
}

// Result describes an applied renewal.
type Result struct {
	GrantedMicros   int64     `json:"granted_micros"`
	ResultingMicros int64     `json:"resulting_micros"`
	Resulting       float64   `json:"resulting"`
	CommittedMicros int64     `json:"committed_micros"`
	AnchorTime      time.Time `json:"anchor_time"`
	CycleEndsAt     time.Time `json:"cycle_ends_at"`
}

// Renew applies the cycle grant if the current cycle has expired.
// Returns ErrRenewalNotReady when the cycle is still running and
// ErrAlreadyApplied when this exact cycle boundary was already granted
// (deterministic idempotency key "{accountId}:{anchorUnix}").
func (s *Service) Renew(ctx context.Context, accountID uuid.UUID, now time.Time) (*Result, error) {
	var out *Result
	err := ledger.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		acc, err := ledger.LoadAccount(tx, accountID)
		if err != nil {
			return err
		}
		cycle := acc.CycleLength()
		cycleEnd := acc.CycleStartedAt.Add(cycle)
		if now.Before(cycleEnd) {
			return domain.ErrRenewalNotReady
		}

		// Anchor selection: the grant starts decaying at the cycle boundary,
		// not at the processing instant, so a late renewal earns no bonus.
		// First-ever renewal and absurdly stale boundaries anchor at now.
		anchor := cycleEnd
		if !acc.CycleObserved || now.Sub(cycleEnd) > staleCycles*cycle {
			anchor = now
		}

		rebirth, err := settings.Get(tx, domain.SettingRebirthAmount, s.RebirthFallbackMicros)
		if err != nil {
			return err
		}

		// Wishes persist across renewal: the cached commitment is re-derived
		// from the live set, each wish decayed to the new shared anchor.
		active, err := ledger.ActiveObligations(tx, accountID)
		if err != nil {
			return err
		}
		obligations := make([]lumen.Obligation, 0, len(active))
		for _, w := range active {
			obligations = append(obligations, lumen.Obligation{FaceMicros: w.FaceMicros, CreatedAt: w.CreatedAt})
		}
		freshCommitted := lumen.FloorToUnit(lumen.CommittedSum(obligations, s.RatePerHourMicros, anchor))

		before := domain.Snapshot(map[string]*domain.Account{"account": acc})
		key := fmt.Sprintf("%s:%d", accountID, anchor.Unix())
		after := domain.Snapshot(map[string]*domain.Account{"account": {
			AccountID:       accountID,
			GrossMicros:     rebirth,
			CommittedMicros: freshCommitted,
			AnchorTime:      anchor,
		}})
		// The idempotency insert comes first so a duplicate renewal reports
		// AlreadyApplied before it can contend on the account row.
		if err := ledger.Append(tx, &domain.LedgerEntry{
			Type:           domain.EntryRenewal,
			AccountID:      accountID,
			AmountMicros:   rebirth,
			Before:         before,
			After:          after,
			IdempotencyKey: &key,
		}); err != nil {
			return err
		}

		if err := ledger.SaveAccount(tx, acc, map[string]interface{}{
			"gross_micros":     rebirth,
			"committed_micros": freshCommitted,
			"anchor_time":      anchor,
			"cycle_started_at": anchor,
			"cycle_observed":   true,
		}); err != nil {
			return err
		}

		log.Info().
			Str("account_id", accountID.String()).
			Time("anchor", anchor).
			Int64("committed_micros", freshCommitted).
			Msg("cycle renewed")

		out = &Result{
			GrantedMicros:   rebirth,
			ResultingMicros: lumen.Decay(rebirth, s.RatePerHourMicros, anchor, now),
			Resulting:       lumen.MicrosToUnits(lumen.Decay(rebirth, s.RatePerHourMicros, anchor, now)),
			CommittedMicros: freshCommitted,
			AnchorTime:      anchor,
			CycleEndsAt:     anchor.Add(cycle),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
