package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wish statuses. Open/InProgress/ReviewPending count toward the owner's
// committed total; the other three are terminal and immutable.
const (
	WishOpen          = "open"
	WishInProgress    = "in_progress"
	WishReviewPending = "review_pending"
	WishFulfilled     = "fulfilled"
	WishExpired       = "expired"
	WishCancelled     = "cancelled"
)

// ActiveWishStatuses are the statuses that reserve value against the owner.
func ActiveWishStatuses() []string {
	return []string{WishOpen, WishInProgress, WishReviewPending}
}

// Wish is a collateral-backed request. FaceMicros is fixed at creation and
// decays independently of the owner's account, anchored at CreatedAt.
type Wish struct {
	WishID          uuid.UUID  `gorm:"column:wish_id;type:uuid;primaryKey" json:"wish_id"`
	OwnerID         uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	CounterpartyID  *uuid.UUID `gorm:"column:counterparty_id;type:uuid" json:"counterparty_id"`
	Title           string     `gorm:"column:title;not null" json:"title"`
	Description     *string    `gorm:"column:description" json:"description"`
	FaceMicros      int64      `gorm:"column:face_micros;not null" json:"face_micros"`
	Status          string     `gorm:"column:status;type:varchar(20);not null;default:open;index" json:"status"`
	FulfilledMicros *int64     `gorm:"column:fulfilled_micros" json:"fulfilled_micros"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at" json:"resolved_at"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Wish) TableName() string {
	return "Wishes"
}

func (w *Wish) BeforeCreate(tx *gorm.DB) error {
	if w.WishID == uuid.Nil {
		w.WishID = uuid.New()
	}
	return nil
}

// Active reports whether the wish still reserves value against its owner.
func (w *Wish) Active() bool {
	switch w.Status {
	case WishOpen, WishInProgress, WishReviewPending:
		return true
	}
	return false
}

// Terminal reports whether the wish has reached an immutable end state.
func (w *Wish) Terminal() bool {
	return !w.Active()
}
