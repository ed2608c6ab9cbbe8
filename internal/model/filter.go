package model

import "time"

// SessionFilter narrows ListSessions results. Zero values mean "no filter".
type SessionFilter struct {
	Owner         string
	Agent         string
	Active        *bool
	ExpiredBefore *time.Time
	Limit         int
	Offset        int
}
