// Package projection maintains the best-effort session mirror: an
// observational, non-authoritative view of session lifecycles built from
// published events and confirmation calls. Mirrors only move forward;
// replays and out-of-order observations are dropped.
package projection

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// Tracker applies observations to the mirror table.
type Tracker struct {
	store  store.Store
	clock  engine.Clock
	logger *slog.Logger
}

// NewTracker creates a Tracker over the given store.
func NewTracker(st store.Store, clock engine.Clock, logger *slog.Logger) *Tracker {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Tracker{store: st, clock: clock, logger: logger}
}

// ObserveCreated records a freshly created session in the mirror. If a
// mirror already exists at a later stage the observation is dropped.
func (t *Tracker) ObserveCreated(ctx context.Context, s *model.VaultSession) error {
	m := &model.SessionMirror{
		SessionID:     s.ID,
		Owner:         s.Owner,
		Agent:         s.Agent,
		VaultAccount:  s.VaultAccount,
		Status:        model.MirrorCreated,
		SessionExpiry: s.SessionExpiry,
		LastObserved:  t.clock.Now(),
	}
	cur, err := t.store.GetMirror(ctx, s.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return t.store.UpsertMirror(ctx, m)
		}
		return err
	}
	if model.MirrorCreated.Rank() <= cur.Status.Rank() {
		return nil
	}
	return t.store.UpsertMirror(ctx, m)
}

// ConfirmActive moves a mirror from CREATED to ACTIVE. Confirming an
// already-terminal mirror is a no-op.
func (t *Tracker) ConfirmActive(ctx context.Context, sessionID string) error {
	return t.advance(ctx, sessionID, model.MirrorActive)
}

// ObserveRevoked marks the mirror REVOKED.
func (t *Tracker) ObserveRevoked(ctx context.Context, sessionID string) error {
	return t.advance(ctx, sessionID, model.MirrorRevoked)
}

// ObserveCleaned marks the mirror CLEANED. Unlike the authoritative record,
// the mirror row survives cleanup as a historical trace.
func (t *Tracker) ObserveCleaned(ctx context.Context, sessionID string) error {
	return t.advance(ctx, sessionID, model.MirrorCleaned)
}

// Touch refreshes a mirror's last-observed timestamp without changing its
// status. Missing mirrors are ignored.
func (t *Tracker) Touch(ctx context.Context, sessionID string) error {
	cur, err := t.store.GetMirror(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	cur.LastObserved = t.clock.Now()
	return t.store.UpsertMirror(ctx, cur)
}

// MarkExpired sweeps ACTIVE mirrors whose window has closed and marks them
// EXPIRED. Returns how many mirrors were moved.
func (t *Tracker) MarkExpired(ctx context.Context) (int, error) {
	now := t.clock.Now()
	mirrors, err := t.store.ListMirrors(ctx, model.MirrorActive)
	if err != nil {
		return 0, err
	}

	var moved int
	for _, m := range mirrors {
		if now.Before(m.SessionExpiry) {
			continue
		}
		m.Status = model.MirrorExpired
		m.LastObserved = now
		if err := t.store.UpsertMirror(ctx, m); err != nil {
			t.logger.Warn("projection: mark expired failed", "session", m.SessionID, "err", err)
			continue
		}
		moved++
	}
	return moved, nil
}

// Get returns the mirror for a session.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	return t.store.GetMirror(ctx, sessionID)
}

// advance moves a mirror to the given status if and only if that is a
// forward transition. Equal or lower ranks are dropped so replayed events
// are harmless.
func (t *Tracker) advance(ctx context.Context, sessionID string, status model.MirrorStatus) error {
	cur, err := t.store.GetMirror(ctx, sessionID)
	if err != nil {
		return err
	}
	if status.Rank() <= cur.Status.Rank() {
		return nil
	}
	cur.Status = status
	cur.LastObserved = t.clock.Now()
	return t.store.UpsertMirror(ctx, cur)
}
