package wishes

import (
	"context"
	"errors"
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

// Service drives the wish lifecycle. Every funds-affecting transition is a
// single atomic transaction that re-reads the owner's ledger before
// verifying anything.
type Service struct {
	DB                *gorm.DB
	RatePerHourMicros int64
	// CapacityFallbackMicros backs the vessel_capacity Settings row.
	CapacityFallbackMicros int64
}

// CreateInput is the caller-supplied part of a new wish.
type CreateInput struct {
	Title       string
	Description *string
	FaceMicros  int64
}

// View is a wish plus its decayed current value at the read instant.
type View struct {
	domain.Wish
	CurrentMicros int64   `json:"current_micros"`
	Current       float64 `json:"current"`
}

func (s *Service) view(w domain.Wish, now time.Time) View {
	var current int64
	if w.Active() {
		current = lumen.Decay(w.FaceMicros, s.RatePerHourMicros, w.CreatedAt, now)
	} else if w.FulfilledMicros != nil {
		current = *w.FulfilledMicros
	}
	return View{Wish: w, CurrentMicros: current, Current: lumen.MicrosToUnits(current)}
}

// Create posts a new wish. The availability check, the gross debit, the
// commitment increment and the wish insert commit together or not at all.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput, now time.Time) (*View, error) {
	if in.FaceMicros <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if in.Title == "" {
		return nil, domain.ErrInvalidAmount
	}
	var out *View
	err := ledger.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		acc, err := ledger.LoadAccount(tx, ownerID)
		if err != nil {
			return err
		}
		gross := lumen.Decay(acc.GrossMicros, s.RatePerHourMicros, acc.AnchorTime, now)
		committed := lumen.Decay(acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now)
		if lumen.Available(acc.GrossMicros, acc.CommittedMicros, s.RatePerHourMicros, acc.AnchorTime, now) < in.FaceMicros {
			return domain.ErrInsufficientFunds
		}

		before := domain.Snapshot(map[string]*domain.Account{"owner": acc})
		newGross := lumen.FloorToUnit(gross - in.FaceMicros)
		newCommitted := lumen.FloorToUnit(committed + in.FaceMicros)
		if err := ledger.SaveAccount(tx, acc, map[string]interface{}{
			"gross_micros":     newGross,
			"committed_micros": newCommitted,
			"anchor_time":      now,
			"wishes_created":   acc.WishesCreated + 1,
		}); err != nil {
			return err
		}

		wish := domain.Wish{
			OwnerID:     ownerID,
			Title:       in.Title,
			Description: in.Description,
			FaceMicros:  in.FaceMicros,
			Status:      domain.WishOpen,
			CreatedAt:   now,
		}
		if err := tx.Create(&wish).Error; err != nil {
			return err
		}

		acc.GrossMicros, acc.CommittedMicros, acc.AnchorTime = newGross, newCommitted, now
		if err := ledger.Append(tx, &domain.LedgerEntry{
			Type:         domain.EntryWishCreate,
			AccountID:    ownerID,
			WishID:       &wish.WishID,
			AmountMicros: in.FaceMicros,
			Before:       before,
			After:        domain.Snapshot(map[string]*domain.Account{"owner": acc}),
		}); err != nil {
			return err
		}
		v := s.view(wish, now)
		out = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a wish, lazily expiring it when its value has decayed to zero.
func (s *Service) Get(ctx context.Context, wishID uuid.UUID, now time.Time) (*View, error) {
	wish, err := s.load(ctx, wishID)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDrained(ctx, wish, now); err != nil {
		return nil, err
	}
	v := s.view(*wish, now)
	return &v, nil
}

// Browse lists open wishes for prospective helpers, dropping the drained.
func (s *Service) Browse(ctx context.Context, now time.Time) ([]View, error) {
	var rows []domain.Wish
	if err := s.DB.WithContext(ctx).
		Where("status = ?", domain.WishOpen).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.sweep(ctx, rows, now)
}

// Mine lists every wish owned by the account, lazily expiring the drained.
func (s *Service) Mine(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]View, error) {
	var rows []domain.Wish
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.sweep(ctx, rows, now)
}

func (s *Service) sweep(ctx context.Context, rows []domain.Wish, now time.Time) ([]View, error) {
	out := make([]View, 0, len(rows))
	for i := range rows {
		if err := s.expireIfDrained(ctx, &rows[i], now); err != nil {
			return nil, err
		}
		out = append(out, s.view(rows[i], now))
	}
	return out, nil
}

// Assign moves Open -> InProgress and pins the counterparty. The owner may
// assign a helper; anyone else assigns themselves. No funds movement.
func (s *Service) Assign(ctx context.Context, wishID, callerID, helperID uuid.UUID, now time.Time) (*View, error) {
	wish, err := s.load(ctx, wishID)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDrained(ctx, wish, now); err != nil {
		return nil, err
	}
	if wish.Terminal() {
		return nil, domain.ErrTerminalState
	}
	if wish.Status != domain.WishOpen {
		return nil, domain.ErrInvalidTransition
	}
	if callerID != wish.OwnerID {
		helperID = callerID
	}
	if helperID == uuid.Nil || helperID == wish.OwnerID {
		return nil, domain.ErrNotPermitted
	}

	res := s.DB.WithContext(ctx).Model(&domain.Wish{}).
		Where("wish_id = ? AND status = ?", wishID, domain.WishOpen).
		Updates(map[string]interface{}{
			"status":          domain.WishInProgress,
			"counterparty_id": helperID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrTransactionConflict
	}
	wish.Status = domain.WishInProgress
	wish.CounterpartyID = &helperID
	v := s.view(*wish, now)
	return &v, nil
}

// ReportCompletion moves InProgress -> ReviewPending; only the assigned
// counterparty may report. No funds movement.
func (s *Service) ReportCompletion(ctx context.Context, wishID, callerID uuid.UUID, now time.Time) (*View, error) {
	wish, err := s.load(ctx, wishID)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDrained(ctx, wish, now); err != nil {
		return nil, err
	}
	if wish.Terminal() {
		return nil, domain.ErrTerminalState
	}
	if wish.Status != domain.WishInProgress {
		return nil, domain.ErrInvalidTransition
	}
	if wish.CounterpartyID == nil || *wish.CounterpartyID != callerID {
		return nil, domain.ErrNotPermitted
	}

	res := s.DB.WithContext(ctx).Model(&domain.Wish{}).
		Where("wish_id = ? AND status = ?", wishID, domain.WishInProgress).
		Update("status", domain.WishReviewPending)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrTransactionConflict
	}
	wish.Status = domain.WishReviewPending
	v := s.view(*wish, now)
	return &v, nil
}

// FulfillResult reports what the payout actually did.
type FulfillResult struct {
	Wish            View      `json:"wish"`
	PaidMicros      int64     `json:"paid_micros"`
	DestroyedMicros int64     `json:"destroyed_micros"`
	CounterpartyID  uuid.UUID `json:"counterparty_id"`
	Salvaged        bool      `json:"salvaged"`
}

// Fulfill settles a ReviewPending wish: the decayed current value is
// credited to the counterparty, capped at vessel capacity (the excess is
// destroyed, not refunded). The owner's commitment drops the wish, and any
// standing deficit on the owner's ledger is forgiven ("salvation"). This is
// the only event that forgives deficits. A second call is a no-op failure,
// never a double payout.
func (s *Service) Fulfill(ctx context.Context, wishID, callerID uuid.UUID, now time.Time) (*FulfillResult, error) {
	var out *FulfillResult
	err := ledger.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		var wish domain.Wish
		if err := tx.Where("wish_id = ?", wishID).First(&wish).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWishNotFound
			}
			return err
		}
		if wish.Terminal() {
			return domain.ErrTerminalState
		}
		if wish.OwnerID != callerID {
			return domain.ErrNotPermitted
		}
		if wish.Status != domain.WishReviewPending {
			return domain.ErrInvalidTransition
		}
		if wish.CounterpartyID == nil {
			return domain.ErrInvalidTransition
		}

		current := lumen.Decay(wish.FaceMicros, s.RatePerHourMicros, wish.CreatedAt, now)
		if current <= 0 {
			// Fully decayed before confirmation: no payout. The error unwinds
			// this transaction, so the status flip is written separately by
			// the caller.
			return domain.ErrWishExpired
		}

		owner, err := ledger.LoadAccount(tx, wish.OwnerID)
		if err != nil {
			return err
		}
		helper, err := ledger.LoadAccount(tx, *wish.CounterpartyID)
		if err != nil {
			return err
		}
		capacity, err := settings.Get(tx, domain.SettingVesselCapacity, s.CapacityFallbackMicros)
		if err != nil {
			return err
		}

		before := domain.Snapshot(map[string]*domain.Account{"owner": owner, "counterparty": helper})

		// Credit side: cap at vessel capacity, destroy the excess.
		helperGross := lumen.Decay(helper.GrossMicros, s.RatePerHourMicros, helper.AnchorTime, now)
		helperCommitted := lumen.Decay(helper.CommittedMicros, s.RatePerHourMicros, helper.AnchorTime, now)
		credited := lumen.FloorToUnit(helperGross + current)
		if credited > capacity {
			credited = capacity
		}
		destroyed := helperGross + current - credited
		if err := ledger.SaveAccount(tx, helper, map[string]interface{}{
			"gross_micros":     credited,
			"committed_micros": lumen.FloorToUnit(helperCommitted),
			"anchor_time":      now,
		}); err != nil {
			return err
		}
		helper.GrossMicros, helper.CommittedMicros, helper.AnchorTime = credited, lumen.FloorToUnit(helperCommitted), now

		// Owner side: drop the wish from the cached commitment; forgive any
		// standing deficit.
		ownerGross := lumen.Decay(owner.GrossMicros, s.RatePerHourMicros, owner.AnchorTime, now)
		ownerCommitted := lumen.Decay(owner.CommittedMicros, s.RatePerHourMicros, owner.AnchorTime, now)
		newCommitted := lumen.FloorToUnit(ownerCommitted - current)
		if newCommitted < 0 {
			newCommitted = 0
		}
		newGross := lumen.FloorToUnit(ownerGross)
		salvaged := newGross < newCommitted
		if salvaged {
			newGross = newCommitted
		}
		if err := ledger.SaveAccount(tx, owner, map[string]interface{}{
			"gross_micros":     newGross,
			"committed_micros": newCommitted,
			"anchor_time":      now,
			"wishes_resolved":  owner.WishesResolved + 1,
		}); err != nil {
			return err
		}
		owner.GrossMicros, owner.CommittedMicros, owner.AnchorTime = newGross, newCommitted, now

		res := tx.Model(&domain.Wish{}).
			Where("wish_id = ? AND status = ?", wishID, domain.WishReviewPending).
			Updates(map[string]interface{}{
				"status":           domain.WishFulfilled,
				"fulfilled_micros": current,
				"resolved_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTransactionConflict
		}

		key := fmt.Sprintf("%s:fulfillment", wishID)
		if err := ledger.Append(tx, &domain.LedgerEntry{
			Type:           domain.EntryFulfillment,
			AccountID:      wish.OwnerID,
			CounterpartyID: wish.CounterpartyID,
			WishID:         &wish.WishID,
			AmountMicros:   current,
			Before:         before,
			After:          domain.Snapshot(map[string]*domain.Account{"owner": owner, "counterparty": helper}),
			IdempotencyKey: &key,
		}); err != nil {
			return err
		}

		wish.Status = domain.WishFulfilled
		wish.FulfilledMicros = &current
		wish.ResolvedAt = &now
		out = &FulfillResult{
			Wish:            s.view(wish, now),
			PaidMicros:      credited - lumen.FloorToUnit(helperGross),
			DestroyedMicros: destroyed,
			CounterpartyID:  *wish.CounterpartyID,
			Salvaged:        salvaged,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrWishExpired) {
			if mErr := markExpired(s.DB.WithContext(ctx), wishID); mErr != nil {
				return nil, mErr
			}
		}
		return nil, err
	}
	return out, nil
}

// Cancel withdraws an unassigned wish. The escrowed current value returns to
// the owner's gross (capped at vessel capacity) and drops out of the
// commitment total.
func (s *Service) Cancel(ctx context.Context, wishID, callerID uuid.UUID, now time.Time) (*View, error) {
	var out *View
	err := ledger.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		var wish domain.Wish
		if err := tx.Where("wish_id = ?", wishID).First(&wish).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWishNotFound
			}
			return err
		}
		if wish.Terminal() {
			return domain.ErrTerminalState
		}
		if wish.OwnerID != callerID {
			return domain.ErrNotPermitted
		}
		if wish.Status != domain.WishOpen {
			return domain.ErrInvalidTransition
		}

		current := lumen.Decay(wish.FaceMicros, s.RatePerHourMicros, wish.CreatedAt, now)

		owner, err := ledger.LoadAccount(tx, wish.OwnerID)
		if err != nil {
			return err
		}
		capacity, err := settings.Get(tx, domain.SettingVesselCapacity, s.CapacityFallbackMicros)
		if err != nil {
			return err
		}
		before := domain.Snapshot(map[string]*domain.Account{"owner": owner})

		gross := lumen.Decay(owner.GrossMicros, s.RatePerHourMicros, owner.AnchorTime, now)
		committed := lumen.Decay(owner.CommittedMicros, s.RatePerHourMicros, owner.AnchorTime, now)
		newGross := lumen.FloorToUnit(gross + current)
		if newGross > capacity {
			newGross = capacity
		}
		newCommitted := lumen.FloorToUnit(committed - current)
		if newCommitted < 0 {
			newCommitted = 0
		}
		if err := ledger.SaveAccount(tx, owner, map[string]interface{}{
			"gross_micros":     newGross,
			"committed_micros": newCommitted,
			"anchor_time":      now,
		}); err != nil {
			return err
		}
		owner.GrossMicros, owner.CommittedMicros, owner.AnchorTime = newGross, newCommitted, now

		res := tx.Model(&domain.Wish{}).
			Where("wish_id = ? AND status = ?", wishID, domain.WishOpen).
			Updates(map[string]interface{}{
				"status":      domain.WishCancelled,
				"resolved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTransactionConflict
		}

		key := fmt.Sprintf("%s:cancellation", wishID)
		if err := ledger.Append(tx, &domain.LedgerEntry{
			Type:           domain.EntryCancellation,
			AccountID:      wish.OwnerID,
			WishID:         &wish.WishID,
			AmountMicros:   current,
			Before:         before,
			After:          domain.Snapshot(map[string]*domain.Account{"owner": owner}),
			IdempotencyKey: &key,
		}); err != nil {
			return err
		}

		wish.Status = domain.WishCancelled
		wish.ResolvedAt = &now
		v := s.view(wish, now)
		out = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, wishID uuid.UUID) (*domain.Wish, error) {
	var wish domain.Wish
	if err := s.DB.WithContext(ctx).Where("wish_id = ?", wishID).First(&wish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWishNotFound
		}
		return nil, err
	}
	return &wish, nil
}

// expireIfDrained lazily marks an active wish Expired once its value has
// decayed to zero. No funds movement: the wish's commitment contribution is
// already zero at that point, so the owner's cached total is left alone and
// the reconciler owns any sub-unit residue.
func (s *Service) expireIfDrained(ctx context.Context, wish *domain.Wish, now time.Time) error {
	if !wish.Active() {
		return nil
	}
	if lumen.Decay(wish.FaceMicros, s.RatePerHourMicros, wish.CreatedAt, now) > 0 {
		return nil
	}
	if err := markExpired(s.DB.WithContext(ctx), wish.WishID); err != nil {
		return err
	}
	log.Info().Str("wish_id", wish.WishID.String()).Msg("wish expired on read")
	wish.Status = domain.WishExpired
	return nil
}

// markExpired flips an active wish to Expired. Racing writers lose on the
// status guard, which is fine: every outcome leaves the wish terminal.
func markExpired(db *gorm.DB, wishID uuid.UUID) error {
	return db.Model(&domain.Wish{}).
		Where("wish_id = ? AND status IN ?", wishID, domain.ActiveWishStatuses()).
		Update("status", domain.WishExpired).Error
}
