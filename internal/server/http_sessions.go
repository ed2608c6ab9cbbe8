package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// handleCreateSession handles POST /v1/sessions.
func (s *VaultServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Owner           string `json:"owner"`
		Agent           string `json:"agent"`
		DurationSeconds int64  `json:"duration_seconds"`
		MaxDeposit      uint64 `json:"max_deposit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	owner, err := caller(r, in.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Agent == "" {
		writeError(w, http.StatusBadRequest, "agent is required")
		return
	}

	session, err := s.ledger.CreateSession(r.Context(), owner, in.Agent,
		time.Duration(in.DurationSeconds)*time.Second, in.MaxDeposit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.observe(r, session.ID, func() error {
		return s.tracker.ObserveCreated(r.Context(), session)
	})
	s.publish(r.Context(), events.TopicSessionCreated, events.SessionCreated{Session: session})

	writeJSON(w, http.StatusCreated, session)
}

// handleListSessions handles GET /v1/sessions.
func (s *VaultServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SessionFilter{
		Owner: q.Get("owner"),
		Agent: q.Get("agent"),
	}
	if v := q.Get("active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Active = &b
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	sessions, total, err := s.ledger.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	// Ensure sessions is never null in JSON output.
	if sessions == nil {
		sessions = []*model.VaultSession{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    total,
	})
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *VaultServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.ledger.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleApproveDelegate handles POST /v1/sessions/{id}/delegate.
func (s *VaultServer) handleApproveDelegate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		Caller   string `json:"caller"`
		Delegate string `json:"delegate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	who, err := caller(r, in.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Delegate == "" {
		writeError(w, http.StatusBadRequest, "delegate is required")
		return
	}

	grant, err := s.ledger.ApproveDelegate(r.Context(), id, who, in.Delegate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	session, err := s.ledger.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.observe(r, id, func() error {
		return s.tracker.ConfirmActive(r.Context(), id)
	})
	s.publish(r.Context(), events.TopicSessionDelegated, events.SessionDelegated{
		Session: session,
		Grant:   grant,
	})

	writeJSON(w, http.StatusCreated, grant)
}

// handleDeposit handles POST /v1/sessions/{id}/deposits.
func (s *VaultServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	who, err := caller(r, in.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.ledger.Deposit(r.Context(), id, who, in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.observe(r, id, func() error {
		return s.tracker.Touch(r.Context(), id)
	})
	s.publish(r.Context(), events.TopicSessionDeposited, events.SessionDeposited{
		Session: session,
		Amount:  in.Amount,
	})

	writeJSON(w, http.StatusOK, session)
}

// handleSpend handles POST /v1/sessions/{id}/spends.
func (s *VaultServer) handleSpend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	who, err := caller(r, in.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.ledger.Spend(r.Context(), id, who, in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.observe(r, id, func() error {
		return s.tracker.Touch(r.Context(), id)
	})
	s.publish(r.Context(), events.TopicSessionSpent, events.SessionSpent{
		Session: session,
		Amount:  in.Amount,
		Spender: who,
	})

	writeJSON(w, http.StatusOK, session)
}

// handleRevoke handles POST /v1/sessions/{id}/revoke.
func (s *VaultServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		Caller string `json:"caller"`
	}
	// An empty body is fine when auth supplies the caller.
	_ = json.NewDecoder(r.Body).Decode(&in)

	who, err := caller(r, in.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, refund, err := s.ledger.Revoke(r.Context(), id, who)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.observe(r, id, func() error {
		return s.tracker.ObserveRevoked(r.Context(), id)
	})
	s.publish(r.Context(), events.TopicSessionRevoked, events.SessionRevoked{
		Session: session,
		Refund:  refund,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"refund":  refund,
	})
}

// handleCleanup handles POST /v1/sessions/{id}/cleanup. Any identity may call
// it; the reward goes to the caller.
func (s *VaultServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		Caller string `json:"caller"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	who, err := caller(r, in.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ledger.Cleanup(r.Context(), id, who)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if res.Session == nil {
		// Someone else already reclaimed it.
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.observe(r, id, func() error {
		return s.tracker.ObserveCleaned(r.Context(), id)
	})
	s.publish(r.Context(), events.TopicSessionCleaned, events.SessionCleaned{
		SessionID: id,
		Owner:     res.Session.Owner,
		Agent:     res.Session.Agent,
		Caller:    who,
		Reward:    res.Reward,
		Refund:    res.Refund,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"reward": res.Reward,
		"refund": res.Refund,
	})
}

// handleListEntries handles GET /v1/sessions/{id}/entries. Entries outlive
// the session, so this never 404s; an unknown id yields an empty list.
func (s *VaultServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Entries(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleGetGrant handles GET /v1/sessions/{id}/grant.
func (s *VaultServer) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := s.ledger.Grant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// handleGetMirror handles GET /v1/sessions/{id}/mirror.
func (s *VaultServer) handleGetMirror(w http.ResponseWriter, r *http.Request) {
	mirror, err := s.tracker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "mirror not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get mirror")
		return
	}
	writeJSON(w, http.StatusOK, mirror)
}

// handleConfirmActive handles POST /v1/sessions/{id}/confirm. It moves the
// mirror to ACTIVE once the caller has verified the session on the ledger.
func (s *VaultServer) handleConfirmActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// The session must exist on the authoritative ledger before the mirror
	// can be confirmed.
	if _, err := s.ledger.GetSession(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.tracker.ConfirmActive(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	mirror, err := s.tracker.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mirror)
}

// observe applies a projection update directly. The reconciler applies the
// same update from the published event; the mirror's forward-only rank guard
// makes the double write harmless.
func (s *VaultServer) observe(r *http.Request, sessionID string, fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("mirror update failed", "session", sessionID, "error", err)
	}
}
