package domain

import "errors"

// Sentinel errors for ledger and wish operations. Handlers map these to HTTP
// status codes; services return them unwrapped so errors.Is works across
// transaction retries.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrWishNotFound        = errors.New("wish not found")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrRenewalNotReady     = errors.New("renewal cycle not yet expired")
	ErrAlreadyApplied      = errors.New("operation already applied")
	ErrTerminalState       = errors.New("wish already in a terminal state")
	ErrWishExpired         = errors.New("wish value has fully decayed")
	ErrInvalidTransition   = errors.New("invalid wish state transition")
	ErrNotPermitted        = errors.New("caller not permitted for this operation")
	ErrUnknownSetting      = errors.New("unknown setting key")
	ErrTransactionConflict = errors.New("concurrent update conflict")
)
