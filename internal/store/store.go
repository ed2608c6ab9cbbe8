package store

import (
	"context"
	"errors"
	"time"

	"github.com/oakmere/vaultd/internal/model"
)

// Sentinel errors shared by every Store implementation. Callers branch on
// these with errors.Is; implementations wrap them with context.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing
	// primary key or unique constraint.
	ErrDuplicate = errors.New("already exists")

	// ErrVersionConflict is returned by UpdateSession when the session row
	// changed since it was read. The caller should re-read and retry or
	// surface the conflict.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInsufficientFunds is returned by Transfer when the source account
	// cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store defines the persistence interface for vaultd.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.VaultSession) error
	GetSession(ctx context.Context, id string) (*model.VaultSession, error)
	// GetSessionForUpdate locks the session row for the duration of the
	// surrounding transaction. Outside a transaction it behaves like
	// GetSession.
	GetSessionForUpdate(ctx context.Context, id string) (*model.VaultSession, error)
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.VaultSession, int, error)
	// UpdateSession persists the session and bumps its version. The write
	// only applies if the stored version still matches s.Version; on
	// success s.Version is incremented.
	UpdateSession(ctx context.Context, s *model.VaultSession) error
	DeleteSession(ctx context.Context, id string) error

	// Delegation grants
	CreateGrant(ctx context.Context, g *model.DelegationGrant) error
	GetGrantBySession(ctx context.Context, sessionID string) (*model.DelegationGrant, error)
	RevokeGrant(ctx context.Context, id string, at time.Time) error

	// Ledger entries (append-only)
	AppendEntry(ctx context.Context, e *model.LedgerEntry) error
	ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error)

	// Accounts
	GetAccount(ctx context.Context, wallet string) (*model.Account, error)
	// CreditAccount adds amount to the wallet's balance, creating the
	// account if needed.
	CreditAccount(ctx context.Context, wallet string, amount uint64) error
	// Transfer atomically moves amount from one wallet to another. The
	// destination account is created if needed.
	Transfer(ctx context.Context, from, to string, amount uint64) error
	DeleteAccount(ctx context.Context, wallet string) error

	// Session mirror (observational projection)
	UpsertMirror(ctx context.Context, m *model.SessionMirror) error
	GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error)
	ListMirrors(ctx context.Context, status model.MirrorStatus) ([]*model.SessionMirror, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
