package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oakmere/vaultd/internal/events"
)

// Reconciler feeds the tracker from the event bus. It is best-effort: a
// failed observation is logged and dropped, never retried, because the
// authoritative record lives in the ledger.
type Reconciler struct {
	tracker *Tracker
	sub     events.Subscriber
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler that consumes session events from sub.
func NewReconciler(tracker *Tracker, sub events.Subscriber, logger *slog.Logger) *Reconciler {
	return &Reconciler{tracker: tracker, sub: sub, logger: logger}
}

// Run subscribes to every session topic and applies observations until ctx
// is cancelled. The bus delivers raw payloads without topic metadata, so
// each topic gets its own subscription and decoder.
func (r *Reconciler) Run(ctx context.Context) error {
	bindings := []struct {
		topic  string
		handle func(context.Context, []byte) error
	}{
		{events.TopicSessionCreated, r.onCreated},
		{events.TopicSessionDelegated, r.onDelegated},
		{events.TopicSessionDeposited, r.onDeposited},
		{events.TopicSessionSpent, r.onSpent},
		{events.TopicSessionRevoked, r.onRevoked},
		{events.TopicSessionCleaned, r.onCleaned},
	}

	var cancels []func()
	var wg sync.WaitGroup
	for _, b := range bindings {
		ch, cancel, err := r.sub.Subscribe(b.topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("projection: subscribe %s: %w", b.topic, err)
		}
		cancels = append(cancels, cancel)

		wg.Add(1)
		go func(topic string, handle func(context.Context, []byte) error, ch <-chan []byte) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-ch:
					if !ok {
						return
					}
					if err := handle(ctx, raw); err != nil {
						r.logger.Warn("projection: observation dropped", "topic", topic, "err", err)
					}
				}
			}
		}(b.topic, b.handle, ch)
	}

	r.logger.Info("projection: reconciler started")
	<-ctx.Done()
	for _, c := range cancels {
		c()
	}
	wg.Wait()
	r.logger.Info("projection: reconciler stopped")
	return nil
}

func (r *Reconciler) onCreated(ctx context.Context, raw []byte) error {
	var ev events.SessionCreated
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Session == nil {
		return fmt.Errorf("created event without session")
	}
	return r.tracker.ObserveCreated(ctx, ev.Session)
}

func (r *Reconciler) onDelegated(ctx context.Context, raw []byte) error {
	var ev events.SessionDelegated
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Session == nil {
		return fmt.Errorf("delegated event without session")
	}
	// Delegation approval is the confirmation that the session went live.
	return r.tracker.ConfirmActive(ctx, ev.Session.ID)
}

func (r *Reconciler) onDeposited(ctx context.Context, raw []byte) error {
	var ev events.SessionDeposited
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Session == nil {
		return fmt.Errorf("deposited event without session")
	}
	return r.tracker.Touch(ctx, ev.Session.ID)
}

func (r *Reconciler) onSpent(ctx context.Context, raw []byte) error {
	var ev events.SessionSpent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Session == nil {
		return fmt.Errorf("spent event without session")
	}
	return r.tracker.Touch(ctx, ev.Session.ID)
}

func (r *Reconciler) onRevoked(ctx context.Context, raw []byte) error {
	var ev events.SessionRevoked
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	if ev.Session == nil {
		return fmt.Errorf("revoked event without session")
	}
	return r.tracker.ObserveRevoked(ctx, ev.Session.ID)
}

func (r *Reconciler) onCleaned(ctx context.Context, raw []byte) error {
	var ev events.SessionCleaned
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	return r.tracker.ObserveCleaned(ctx, ev.SessionID)
}
