// Package engine holds the delegated-custody transition functions. Every
// function here is a pure check-then-mutate step over in-memory records;
// the ledger layer is responsible for running each transition inside one
// store transaction so it applies fully or not at all.
package engine

import (
	"time"

	"github.com/oakmere/vaultd/internal/model"
)

const (
	// MaxCleanupReward caps the incentive paid to whoever triggers expiry
	// cleanup, regardless of pool balance.
	MaxCleanupReward uint64 = 10_000

	// ReservedMinimum is the storage reserve withheld from refunds while a
	// session record still exists. It returns to the owner when the record
	// is reclaimed by cleanup.
	ReservedMinimum uint64 = 890_880
)

// NewSession validates creation parameters and builds a fresh VaultSession.
// Timestamps come from the trusted clock, never from the caller.
func NewSession(owner, agent string, duration time.Duration, maxDeposit uint64, now time.Time) (*model.VaultSession, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if maxDeposit == 0 {
		return nil, ErrInvalidDepositCeiling
	}
	return &model.VaultSession{
		ID:            model.SessionID(owner, agent),
		Owner:         owner,
		Agent:         agent,
		VaultAccount:  model.VaultAccountID(owner, agent),
		SessionStart:  now,
		SessionExpiry: now.Add(duration),
		IsActive:      true,
		MaxDeposit:    maxDeposit,
	}, nil
}

// ApproveDelegate binds a delegation grant to the session. The grant can
// only ever name the session's own agent; binding an arbitrary third party
// is refused outright.
func ApproveDelegate(s *model.VaultSession, caller, delegate, grantID string, now time.Time) (*model.DelegationGrant, error) {
	if caller != s.Owner {
		return nil, ErrUnauthorized
	}
	if delegate != s.Agent {
		return nil, ErrDelegateMismatch
	}
	if err := ensureLive(s, now); err != nil {
		return nil, err
	}
	return &model.DelegationGrant{
		ID:         grantID,
		SessionID:  s.ID,
		Delegate:   delegate,
		ApprovedAt: now,
	}, nil
}

// Deposit checks the owner's deposit against the session ceiling and
// increments total_deposited. The actual funds movement commits in the same
// transaction, handled by the ledger layer.
func Deposit(s *model.VaultSession, caller string, amount uint64, now time.Time) error {
	if caller != s.Owner {
		return ErrUnauthorized
	}
	if err := ensureLive(s, now); err != nil {
		return err
	}
	newTotal, err := checkedAdd(s.TotalDeposited, amount)
	if err != nil {
		return err
	}
	if newTotal > s.MaxDeposit {
		return ErrDepositCeilingExceeded
	}
	s.TotalDeposited = newTotal
	return nil
}

// RecordSpend records delegated consumption against the pool. It moves no
// funds itself; it only enforces spent <= deposited so downstream execution
// can never draw more than the owner put in.
func RecordSpend(s *model.VaultSession, g *model.DelegationGrant, caller string, amount uint64, now time.Time) error {
	if g == nil || g.SessionID != s.ID || caller != g.Delegate {
		return ErrUnauthorized
	}
	if g.Revoked() {
		return ErrGrantRevoked
	}
	if err := ensureLive(s, now); err != nil {
		return err
	}
	newSpent, err := checkedAdd(s.TotalSpent, amount)
	if err != nil {
		return err
	}
	if newSpent > s.TotalDeposited {
		return ErrSpendExceedsDeposit
	}
	s.TotalSpent = newSpent
	return nil
}

// Revoke deactivates the session and computes the owner refund from the
// current pool balance. Revoking an already-inactive session is a no-op
// success with a zero refund, so overlapping revoke attempts cannot both
// fail. The grant, if present, is stamped revoked exactly once.
func Revoke(s *model.VaultSession, g *model.DelegationGrant, caller string, poolBalance uint64, now time.Time) (uint64, error) {
	if caller != s.Owner {
		return 0, ErrUnauthorized
	}
	if !s.IsActive {
		return 0, nil
	}
	s.IsActive = false
	if g != nil && !g.Revoked() {
		t := now
		g.RevokedAt = &t
	}
	return Refundable(poolBalance), nil
}

// Cleanup resolves an expired session: the caller earns a capped reward and
// the rest of the pool, reserve included, returns to the owner. The session
// record is reclaimable afterwards. No ownership check: expiry plus the
// reward substitute for authorization.
func Cleanup(s *model.VaultSession, poolBalance uint64, now time.Time) (reward, refund uint64, err error) {
	if now.Before(s.SessionExpiry) {
		return 0, 0, ErrNotYetExpired
	}
	s.IsActive = false
	reward = min(Refundable(poolBalance), MaxCleanupReward)
	refund = poolBalance - reward
	return reward, refund, nil
}

// Refundable is the portion of a pool balance that may leave the vault
// while its record still exists.
func Refundable(poolBalance uint64) uint64 {
	if poolBalance <= ReservedMinimum {
		return 0
	}
	return poolBalance - ReservedMinimum
}

// ensureLive rejects transitions against inactive or expired sessions.
// Expiry is strict: a deposit or spend at the expiry instant is refused.
func ensureLive(s *model.VaultSession, now time.Time) error {
	if !s.IsActive || s.Expired(now) {
		return ErrSessionInactiveOrExpired
	}
	return nil
}
