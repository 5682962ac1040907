package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lumen-backend/internal/domain"
)

// maxConflictRetries bounds the optimistic re-read-verify-write loop before
// a TransactionConflict surfaces to the caller as a transient failure.
const maxConflictRetries = 3

// InTx runs fn as one atomic transaction, retrying the whole body on
// optimistic version conflicts. fn must re-read everything it verifies, so a
// retry always works from fresh state.
func InTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, domain.ErrTransactionConflict) {
			return err
		}
	}
	return err
}

// LoadAccount fetches an account inside a transaction.
func LoadAccount(tx *gorm.DB, id uuid.UUID) (*domain.Account, error) {
	var acc domain.Account
	if err := tx.Where("account_id = ?", id).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// SaveAccount applies updates guarded by the account's version. Zero rows
// affected means a concurrent writer won; the caller's transaction is rolled
// back and retried by InTx.
func SaveAccount(tx *gorm.DB, acc *domain.Account, updates map[string]interface{}) error {
	updates["version"] = acc.Version + 1
	res := tx.Model(&domain.Account{}).
		Where("account_id = ? AND version = ?", acc.AccountID, acc.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTransactionConflict
	}
	return nil
}

// Append inserts an audit entry. A duplicate idempotency key reports
// AlreadyApplied, which callers that retry blindly treat as success.
func Append(tx *gorm.DB, entry *domain.LedgerEntry) error {
	if err := tx.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyApplied
		}
		return err
	}
	return nil
}

// ActiveObligations loads the owner's value-reserving wishes inside tx.
func ActiveObligations(tx *gorm.DB, ownerID uuid.UUID) ([]domain.Wish, error) {
	var wishes []domain.Wish
	err := tx.Where("owner_id = ? AND status IN ?", ownerID, domain.ActiveWishStatuses()).
		Find(&wishes).Error
	return wishes, err
}
