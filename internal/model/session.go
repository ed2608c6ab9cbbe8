package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// VaultSession is the authoritative record of one owner/agent custody pool.
// Counters are monotonically non-decreasing; IsActive is monotonic in the
// other direction (once false, never true again).
type VaultSession struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Agent          string    `json:"agent"`
	VaultAccount   string    `json:"vault_account"`
	SessionStart   time.Time `json:"session_start"`
	SessionExpiry  time.Time `json:"session_expiry"`
	IsActive       bool      `json:"is_active"`
	MaxDeposit     uint64    `json:"max_deposit"`
	TotalDeposited uint64    `json:"total_deposited"`
	TotalSpent     uint64    `json:"total_spent"`

	// Version is bumped on every update; the store rejects writes against a
	// stale version so two terminal transitions can never both commit.
	Version int64 `json:"version"`
}

// Expired reports whether the session's window has closed at the given time.
func (s *VaultSession) Expired(now time.Time) bool {
	return !now.Before(s.SessionExpiry)
}

// SessionID derives the session identifier for an owner/agent pair.
// The derivation is deterministic so at most one live session can exist
// per pair: a second create for the same pair collides on the primary key.
func SessionID(owner, agent string) string {
	return "vs-" + pairDigest(owner, agent)
}

// VaultAccountID derives the pool account address holding a session's funds.
func VaultAccountID(owner, agent string) string {
	return "va-" + pairDigest(owner, agent)
}

func pairDigest(owner, agent string) string {
	h := sha256.New()
	h.Write([]byte(owner))
	h.Write([]byte{0})
	h.Write([]byte(agent))
	return hex.EncodeToString(h.Sum(nil))[:20]
}
