package engine

import "errors"

// Authorization failures: the caller identity does not match the required
// role. Never retried.
var (
	ErrUnauthorized     = errors.New("caller is not authorized for this transition")
	ErrDelegateMismatch = errors.New("delegate does not match the session agent")
)

// Guardrail violations: the requested amount would break a monetary
// invariant. The caller may retry with a smaller amount.
var (
	ErrDepositCeilingExceeded = errors.New("deposit would exceed the session ceiling")
	ErrSpendExceedsDeposit    = errors.New("spend would exceed total deposited")
)

// Lifecycle violations: the operation is invalid for the record's current
// state. For terminal-transition races these are benign ("someone else
// already completed this").
var (
	ErrInvalidDuration          = errors.New("session duration must be positive")
	ErrInvalidDepositCeiling    = errors.New("deposit ceiling must be positive")
	ErrSessionExists            = errors.New("a session already exists for this owner/agent pair")
	ErrGrantExists              = errors.New("a delegation grant already exists for this session")
	ErrGrantRevoked             = errors.New("delegation grant has been revoked")
	ErrSessionInactiveOrExpired = errors.New("session is inactive or expired")
	ErrNotYetExpired            = errors.New("session has not yet expired")
)

// ErrAmountOverflow rejects counter arithmetic that would wrap. Wrapping
// would silently defeat the deposit/spend guardrails, so overflow is an
// error, never a modulo.
var ErrAmountOverflow = errors.New("amount overflows the counter")
