// Package monitor runs the background expiry sweep: expired sessions are
// marked in the mirror and cleaned up through the ledger, earning the
// sweeper wallet the cleanup reward.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/ledger"
	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/projection"
	"github.com/oakmere/vaultd/internal/store"
)

// Sweeper periodically reclaims expired sessions. Cleanup is permissionless,
// so the sweeper is just one caller among any; it exists so expired pools
// drain even when nobody else is watching.
type Sweeper struct {
	ledger   *ledger.Ledger
	store    store.Store
	tracker  *projection.Tracker
	pub      events.Publisher
	wallet   string
	interval time.Duration
	clock    engine.Clock
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper that credits rewards to the given wallet.
func New(l *ledger.Ledger, st store.Store, tracker *projection.Tracker, pub events.Publisher, wallet string, interval time.Duration, clock engine.Clock, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Sweeper{
		ledger:   l,
		store:    st,
		tracker:  tracker,
		pub:      pub,
		wallet:   wallet,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start begins the periodic sweep. It runs one sweep immediately, then on
// each tick.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the sweeper and waits for the current sweep (if any) to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce marks expired mirrors, then cleans up every expired session that
// is still on the books. Returns how many sessions were reclaimed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.tracker != nil {
		if _, err := s.tracker.MarkExpired(ctx); err != nil {
			s.logger.Warn("sweep: mark expired failed", "err", err)
		}
	}

	now := s.clock.Now()
	active := true
	sessions, _, err := s.store.ListSessions(ctx, model.SessionFilter{
		Active:        &active,
		ExpiredBefore: &now,
	})
	if err != nil {
		s.logger.Error("sweep: list expired sessions failed", "err", err)
		return 0
	}

	var cleaned int
	for _, sess := range sessions {
		res, err := s.ledger.Cleanup(ctx, sess.ID, s.wallet)
		if err != nil {
			// Someone else may have won the race; skip and move on.
			s.logger.Warn("sweep: cleanup failed", "session", sess.ID, "err", err)
			continue
		}
		if res.Session == nil {
			continue
		}
		cleaned++

		ev := events.SessionCleaned{
			SessionID: sess.ID,
			Owner:     sess.Owner,
			Agent:     sess.Agent,
			Caller:    s.wallet,
			Reward:    res.Reward,
			Refund:    res.Refund,
		}
		if err := s.pub.Publish(ctx, events.TopicSessionCleaned, ev); err != nil {
			s.logger.Warn("sweep: publish cleaned event failed", "session", sess.ID, "err", err)
		}
		if s.tracker != nil {
			if err := s.tracker.ObserveCleaned(ctx, sess.ID); err != nil {
				s.logger.Warn("sweep: mirror update failed", "session", sess.ID, "err", err)
			}
		}
		s.logger.Info("sweep: session reclaimed",
			"session", sess.ID, "reward", res.Reward, "refund", res.Refund)
	}
	return cleaned
}
