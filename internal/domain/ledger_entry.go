package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger entry types. The log is append-only and used for audit and
// reconciliation replay only, never for live balance computation.
const (
	EntryWishCreate     = "wish_create"
	EntryPayment        = "payment"
	EntryFulfillment    = "fulfillment"
	EntryCancellation   = "cancellation"
	EntryRenewal        = "renewal"
	EntrySyncCorrection = "sync_correction"
)

// LedgerEntry is an immutable audit record for a funds-affecting mutation.
// IdempotencyKey is unique when set: renewals use "{accountId}:{anchorUnix}",
// fulfillments "{wishId}:fulfillment", cancellations "{wishId}:cancellation",
// so a retried client call collides instead of duplicating value.
type LedgerEntry struct {
	EntryID        uuid.UUID      `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	Type           string         `gorm:"column:type;type:varchar(20);not null" json:"type"`
	AccountID      uuid.UUID      `gorm:"column:account_id;type:uuid;not null;index" json:"account_id"`
	CounterpartyID *uuid.UUID     `gorm:"column:counterparty_id;type:uuid" json:"counterparty_id"`
	WishID         *uuid.UUID     `gorm:"column:wish_id;type:uuid" json:"wish_id"`
	AmountMicros   int64          `gorm:"column:amount_micros;not null" json:"amount_micros"`
	Before         datatypes.JSON `gorm:"column:before_state" json:"before"`
	After          datatypes.JSON `gorm:"column:after_state" json:"after"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;uniqueIndex" json:"idempotency_key"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (LedgerEntry) TableName() string {
	return "LedgerEntries"
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return nil
}

// BalanceSnapshot is the account state captured in Before/After payloads.
type BalanceSnapshot struct {
	GrossMicros     int64     `json:"gross_micros"`
	CommittedMicros int64     `json:"committed_micros"`
	AnchorTime      time.Time `json:"anchor_time"`
}

// Snapshot serializes one or more named account states for an audit payload.
// Keys are roles ("owner", "counterparty", "account").
func Snapshot(accounts map[string]*Account) datatypes.JSON {
	out := make(map[string]BalanceSnapshot, len(accounts))
	for role, a := range accounts {
		if a == nil {
			continue
		}
		out[role] = BalanceSnapshot{
			GrossMicros:     a.GrossMicros,
			CommittedMicros: a.CommittedMicros,
			AnchorTime:      a.AnchorTime,
		}
	}
	b, _ := json.Marshal(out)
	return datatypes.JSON(b)
}
