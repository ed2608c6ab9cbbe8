package model

import "time"

// MirrorStatus is the projection-side view of a session's lifecycle.
// It is never authoritative; it only moves forward.
type MirrorStatus string

const (
	MirrorCreated MirrorStatus = "CREATED"
	MirrorActive  MirrorStatus = "ACTIVE"
	MirrorRevoked MirrorStatus = "REVOKED"
	MirrorExpired MirrorStatus = "EXPIRED"
	MirrorCleaned MirrorStatus = "CLEANED"
)

// String returns the string representation of the mirror status.
func (s MirrorStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s MirrorStatus) IsValid() bool {
	switch s {
	case MirrorCreated, MirrorActive, MirrorRevoked, MirrorExpired, MirrorCleaned:
		return true
	}
	return false
}

// Rank orders statuses so replayed observations can never move a mirror
// backwards. REVOKED, EXPIRED, and CLEANED are all terminal-tier; CLEANED
// outranks EXPIRED because cleanup follows expiry.
func (s MirrorStatus) Rank() int {
	switch s {
	case MirrorCreated:
		return 1
	case MirrorActive:
		return 2
	case MirrorRevoked, MirrorExpired:
		return 3
	case MirrorCleaned:
		return 4
	}
	return 0
}

// SessionMirror is the best-effort off-ledger view of a session, maintained
// by the projection tracker from observed events and confirmation calls.
type SessionMirror struct {
	SessionID     string       `json:"session_id"`
	Owner         string       `json:"owner"`
	Agent         string       `json:"agent"`
	VaultAccount  string       `json:"vault_account,omitempty"`
	Status        MirrorStatus `json:"status"`
	SessionExpiry time.Time    `json:"session_expiry"`
	LastObserved  time.Time    `json:"last_observed"`
}
