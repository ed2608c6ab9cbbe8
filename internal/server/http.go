package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When jwtSecret is non-empty, requests (except GET /v1/health) must carry a
// valid Bearer token; the token subject is the acting wallet.
func (s *VaultServer) NewHTTPHandler(jwtSecret string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/delegate", s.handleApproveDelegate)
	mux.HandleFunc("POST /v1/sessions/{id}/deposits", s.handleDeposit)
	mux.HandleFunc("POST /v1/sessions/{id}/spends", s.handleSpend)
	mux.HandleFunc("POST /v1/sessions/{id}/revoke", s.handleRevoke)
	mux.HandleFunc("POST /v1/sessions/{id}/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /v1/sessions/{id}/entries", s.handleListEntries)
	mux.HandleFunc("GET /v1/sessions/{id}/grant", s.handleGetGrant)
	mux.HandleFunc("GET /v1/sessions/{id}/mirror", s.handleGetMirror)
	mux.HandleFunc("POST /v1/sessions/{id}/confirm", s.handleConfirmActive)
	mux.HandleFunc("POST /v1/agents/keys", s.handleGenerateAgentKey)
	mux.HandleFunc("GET /v1/accounts/{wallet}", s.handleGetAccount)
	mux.HandleFunc("POST /v1/accounts/{wallet}/faucet", s.handleFaucet)
	mux.HandleFunc("GET /v1/fees/estimate", s.handleEstimateFees)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(jwtSecret, mux)
}

// handleHealth handles GET /v1/health.
func (s *VaultServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
