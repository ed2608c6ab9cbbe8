package model

import "time"

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryDeposit       EntryKind = "deposit"
	EntrySpend         EntryKind = "spend"
	EntryRefund        EntryKind = "refund"
	EntryCleanupReward EntryKind = "cleanup_reward"
)

// String returns the string representation of the entry kind.
func (k EntryKind) String() string {
	return string(k)
}

// IsValid checks whether the entry kind is a known value.
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryDeposit, EntrySpend, EntryRefund, EntryCleanupReward:
		return true
	}
	return false
}

// LedgerEntry is one immutable accounting record. Entries are append-only
// and owned by the session they reference; total_deposited and total_spent
// can be reconstructed from them.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      EntryKind `json:"kind"`
	Amount    uint64    `json:"amount"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
