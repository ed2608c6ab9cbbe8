package engine

import "time"

// Clock supplies the trusted time used for every lifecycle comparison.
// Timestamps never come from caller input; that closes the vector where a
// caller claims false expiry or backdates a session.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
