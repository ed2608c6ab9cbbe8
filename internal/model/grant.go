package model

import "time"

// DelegationGrant authorizes a session's agent to draw against the pool.
// At most one grant exists per session lifetime; revocation is permanent.
// The grant holds the session's id, not a live reference; callers resolve
// it through the store.
type DelegationGrant struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Delegate   string     `json:"delegate"`
	ApprovedAt time.Time  `json:"approved_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the grant has been permanently disabled.
func (g *DelegationGrant) Revoked() bool {
	return g.RevokedAt != nil
}
