package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oakmere/vaultd/internal/engine"
)

// handleGetAccount handles GET /v1/accounts/{wallet}.
func (s *VaultServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.Account(r.Context(), r.PathValue("wallet"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleFaucet handles POST /v1/accounts/{wallet}/faucet. Disabled outside
// development.
func (s *VaultServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if !s.devFaucet {
		writeError(w, http.StatusForbidden, "faucet is disabled")
		return
	}

	var in struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	wallet := r.PathValue("wallet")
	if err := s.ledger.Faucet(r.Context(), wallet, in.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	account, err := s.ledger.Account(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleEstimateFees handles GET /v1/fees/estimate. It sizes a deposit for
// the given number of trades at a priority tier.
func (s *VaultServer) handleEstimateFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	trades := uint64(1)
	if v := q.Get("trades"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid trades value")
			return
		}
		trades = n
	}

	priority := engine.Priority(q.Get("priority"))
	if priority == "" {
		priority = engine.PriorityMedium
	}
	if !priority.IsValid() {
		writeError(w, http.StatusBadRequest, "priority must be low, medium, or high")
		return
	}

	deposit, err := engine.DepositForTrades(trades, priority)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"priority":      priority,
		"trades":        trades,
		"fee_per_trade": engine.FeePerTrade(priority),
		"deposit":       deposit,
	})
}
