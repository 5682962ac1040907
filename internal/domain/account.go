package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the per-identity ledger document. GrossMicros and
// CommittedMicros are face values in micro-Lm, true as of AnchorTime; both
// must be re-decayed relative to "now" before use. Version guards every
// write (optimistic concurrency).
type Account struct {
	AccountID       uuid.UUID      `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	GrossMicros     int64          `gorm:"column:gross_micros;not null;default:0" json:"gross_micros"`
	CommittedMicros int64          `gorm:"column:committed_micros;not null;default:0" json:"committed_micros"`
	AnchorTime      time.Time      `gorm:"column:anchor_time;not null" json:"anchor_time"`
	CycleStartedAt  time.Time      `gorm:"column:cycle_started_at;not null" json:"cycle_started_at"`
	CycleLengthDays int            `gorm:"column:cycle_length_days;not null;default:10" json:"cycle_length_days"`
	CycleObserved   bool           `gorm:"column:cycle_observed;not null;default:false" json:"cycle_observed"`
	WishesCreated   int            `gorm:"column:wishes_created;not null;default:0" json:"wishes_created"`
	WishesResolved  int            `gorm:"column:wishes_resolved;not null;default:0" json:"wishes_resolved"`
	Version         int64          `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "Accounts"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == uuid.Nil {
		a.AccountID = uuid.New()
	}
	return nil
}

// CycleLength returns the renewal cycle duration, falling back to the
// default 10 days when the column holds a non-positive value.
func (a *Account) CycleLength() time.Duration {
	days := a.CycleLengthDays
	if days <= 0 {
		days = 10
	}
	return time.Duration(days) * 24 * time.Hour
}
