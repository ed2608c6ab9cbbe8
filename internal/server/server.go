// Package server exposes the HTTP/JSON API over the ledger and projection.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/ledger"
	"github.com/oakmere/vaultd/internal/projection"
	"github.com/oakmere/vaultd/internal/store"
)

// VaultServer serves the delegated-custody API. Mutations go through the
// ledger; reads of the mirror go through the tracker; every mutation is
// published to NATS and fanned out to SSE subscribers.
type VaultServer struct {
	ledger    *ledger.Ledger
	tracker   *projection.Tracker
	publisher events.Publisher
	sseHub    *sseHub

	// devFaucet gates the unauthenticated balance faucet.
	devFaucet bool

	// keySecret seals generated agent keys; empty disables key generation.
	keySecret string
}

// NewVaultServer returns a VaultServer backed by the given ledger and tracker.
func NewVaultServer(l *ledger.Ledger, t *projection.Tracker, p events.Publisher, devFaucet bool, keySecret string) *VaultServer {
	return &VaultServer{
		ledger:    l,
		tracker:   t,
		publisher: p,
		sseHub:    newSSEHub(),
		devFaucet: devFaucet,
		keySecret: keySecret,
	}
}

// publish emits an event to NATS and the SSE hub. Both are best-effort;
// failures are logged but never fail the mutation that already committed.
func (s *VaultServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
	s.broadcastEvent(topic, event)
}

// inputError indicates invalid user input. The transport maps it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// statusForError maps domain errors onto HTTP status codes. Authorization
// failures are 403, identity lookups 404, lifecycle conflicts 409, and
// guardrail violations 422.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrDelegateMismatch):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrSessionExists),
		errors.Is(err, engine.ErrGrantExists),
		errors.Is(err, engine.ErrGrantRevoked),
		errors.Is(err, engine.ErrSessionInactiveOrExpired),
		errors.Is(err, engine.ErrNotYetExpired),
		errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrDepositCeilingExceeded),
		errors.Is(err, engine.ErrSpendExceedsDeposit),
		errors.Is(err, engine.ErrAmountOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, engine.ErrInvalidDepositCeiling):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes the right status for a domain error, hiding
// internals behind a generic message for unexpected failures.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
