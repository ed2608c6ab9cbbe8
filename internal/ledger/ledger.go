// Package ledger coordinates delegated-custody transitions against the
// store. Every mutation runs inside a single transaction: the session row is
// locked, the engine checks run, and the funds movement plus the ledger
// entry commit together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/idgen"
	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// Ledger is the authoritative write path for sessions, grants, entries, and
// account balances.
type Ledger struct {
	store store.Store
	clock engine.Clock
}

// New creates a Ledger over the given store.
func New(st store.Store, clock engine.Clock) *Ledger {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Ledger{store: st, clock: clock}
}

// CleanupResult reports how an expired session's pool was distributed.
type CleanupResult struct {
	Session *model.VaultSession
	Reward  uint64
	Refund  uint64
}

// CreateSession opens a new custody session for the owner/agent pair and
// moves the storage reserve from the owner into the fresh pool account. The
// owner must hold at least engine.ReservedMinimum.
func (l *Ledger) CreateSession(ctx context.Context, owner, agent string, duration time.Duration, maxDeposit uint64) (*model.VaultSession, error) {
	now := l.clock.Now()
	s, err := engine.NewSession(owner, agent, duration, maxDeposit, now)
	if err != nil {
		return nil, err
	}

	err = l.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateSession(ctx, s); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return engine.ErrSessionExists
			}
			return err
		}
		return tx.Transfer(ctx, owner, s.VaultAccount, engine.ReservedMinimum)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ApproveDelegate binds the session's agent as its spending delegate. Only
// one grant may ever exist per session lifetime.
func (l *Ledger) ApproveDelegate(ctx context.Context, sessionID, caller, delegate string) (*model.DelegationGrant, error) {
	grantID, err := idgen.Generate()
	if err != nil {
		return nil, err
	}

	var grant *model.DelegationGrant
	err = l.store.RunInTransaction(ctx, func(tx store.Store) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		g, err := engine.ApproveDelegate(s, caller, delegate, grantID, l.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.CreateGrant(ctx, g); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return engine.ErrGrantExists
			}
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// Deposit moves funds from the owner's wallet into the session pool, subject
// to the deposit ceiling.
func (l *Ledger) Deposit(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error) {
	var session *model.VaultSession
	err := l.store.RunInTransaction(ctx, func(tx store.Store) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := engine.Deposit(s, caller, amount, l.clock.Now()); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, caller, s.VaultAccount, amount); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		if err := l.appendEntry(ctx, tx, s.ID, model.EntryDeposit, amount, caller); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Spend draws delegated funds from the pool to the delegate's wallet. The
// caller must hold the session's grant and the total drawn can never exceed
// the total deposited.
func (l *Ledger) Spend(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error) {
	var session *model.VaultSession
	err := l.store.RunInTransaction(ctx, func(tx store.Store) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		g, err := tx.GetGrantBySession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrUnauthorized
			}
			return err
		}
		if err := engine.RecordSpend(s, g, caller, amount, l.clock.Now()); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, s.VaultAccount, caller, amount); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		if err := l.appendEntry(ctx, tx, s.ID, model.EntrySpend, amount, caller); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Revoke deactivates the session and refunds the pool balance above the
// storage reserve to the owner. Revoking an already-inactive session returns
// the session unchanged with a zero refund.
func (l *Ledger) Revoke(ctx context.Context, sessionID, caller string) (*model.VaultSession, uint64, error) {
	var (
		session *model.VaultSession
		refund  uint64
	)
	err := l.store.RunInTransaction(ctx, func(tx store.Store) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.IsActive {
			if caller != s.Owner {
				return engine.ErrUnauthorized
			}
			session = s
			return nil
		}

		g, err := tx.GetGrantBySession(ctx, sessionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		balance := l.poolBalance(ctx, tx, s.VaultAccount)
		r, err := engine.Revoke(s, g, caller, balance, l.clock.Now())
		if err != nil {
			return err
		}
		if g != nil && g.Revoked() {
			if err := tx.RevokeGrant(ctx, g.ID, *g.RevokedAt); err != nil {
				return err
			}
		}
		if r > 0 {
			if err := tx.Transfer(ctx, s.VaultAccount, s.Owner, r); err != nil {
				return err
			}
			if err := l.appendEntry(ctx, tx, s.ID, model.EntryRefund, r, caller); err != nil {
				return err
			}
		}
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		session, refund = s, r
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return session, refund, nil
}

// Cleanup reclaims an expired session: the caller earns a capped reward, the
// rest of the pool (reserve included) returns to the owner, and the session
// row and pool account are deleted. Any identity may call it. An unknown
// session is a no-op so concurrent cleanups race benignly.
func (l *Ledger) Cleanup(ctx context.Context, sessionID, caller string) (*CleanupResult, error) {
	var res CleanupResult
	err := l.store.RunInTransaction(ctx, func(tx store.Store) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		balance := l.poolBalance(ctx, tx, s.VaultAccount)
		reward, refund, err := engine.Cleanup(s, balance, l.clock.Now())
		if err != nil {
			return err
		}
		if reward > 0 {
			if err := tx.Transfer(ctx, s.VaultAccount, caller, reward); err != nil {
				return err
			}
			if err := l.appendEntry(ctx, tx, s.ID, model.EntryCleanupReward, reward, caller); err != nil {
				return err
			}
		}
		if refund > 0 {
			if err := tx.Transfer(ctx, s.VaultAccount, s.Owner, refund); err != nil {
				return err
			}
			if err := l.appendEntry(ctx, tx, s.ID, model.EntryRefund, refund, caller); err != nil {
				return err
			}
		}
		if err := tx.DeleteAccount(ctx, s.VaultAccount); err != nil {
			return err
		}
		if err := tx.DeleteSession(ctx, s.ID); err != nil {
			return err
		}
		res = CleanupResult{Session: s, Reward: reward, Refund: refund}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetSession returns the authoritative session record.
func (l *Ledger) GetSession(ctx context.Context, id string) (*model.VaultSession, error) {
	return l.store.GetSession(ctx, id)
}

// ListSessions returns sessions matching the filter plus the total count.
func (l *Ledger) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.VaultSession, int, error) {
	return l.store.ListSessions(ctx, filter)
}

// Entries returns the append-only ledger entries for a session, oldest first.
// Entries survive cleanup of the session itself.
func (l *Ledger) Entries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	return l.store.ListEntries(ctx, sessionID)
}

// Grant returns the delegation grant bound to a session.
func (l *Ledger) Grant(ctx context.Context, sessionID string) (*model.DelegationGrant, error) {
	return l.store.GetGrantBySession(ctx, sessionID)
}

// Account returns the balance record for a wallet.
func (l *Ledger) Account(ctx context.Context, wallet string) (*model.Account, error) {
	return l.store.GetAccount(ctx, wallet)
}

// Faucet credits a wallet out of thin air. Only reachable when the dev
// faucet is enabled in config.
func (l *Ledger) Faucet(ctx context.Context, wallet string, amount uint64) error {
	return l.store.CreditAccount(ctx, wallet, amount)
}

// poolBalance reads the pool account balance, treating a missing account as
// empty.
func (l *Ledger) poolBalance(ctx context.Context, tx store.Store, vaultAccount string) uint64 {
	a, err := tx.GetAccount(ctx, vaultAccount)
	if err != nil {
		return 0
	}
	return a.Balance
}

func (l *Ledger) appendEntry(ctx context.Context, tx store.Store, sessionID string, kind model.EntryKind, amount uint64, actor string) error {
	e := &model.LedgerEntry{
		SessionID: sessionID,
		Kind:      kind,
		Amount:    amount,
		Actor:     actor,
		CreatedAt: l.clock.Now(),
	}
	if err := tx.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("append %s entry: %w", kind, err)
	}
	return nil
}
