// Package client provides a transport-agnostic interface for the vaultd
// service and an HTTP/JSON implementation that talks to the vaultd REST API.
package client

import (
	"context"

	"github.com/oakmere/vaultd/internal/keycustody"
	"github.com/oakmere/vaultd/internal/model"
)

// VaultClient is the interface that all vaultd CLI commands use to
// communicate with the server. It is implemented by HTTPClient (default) and
// can be backed by any transport.
type VaultClient interface {
	// Sessions
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.VaultSession, error)
	GetSession(ctx context.Context, id string) (*model.VaultSession, error)
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)

	// Lifecycle transitions
	ApproveDelegate(ctx context.Context, sessionID, caller, delegate string) (*model.DelegationGrant, error)
	Deposit(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error)
	Spend(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error)
	Revoke(ctx context.Context, sessionID, caller string) (*RevokeResponse, error)
	Cleanup(ctx context.Context, sessionID, caller string) (*CleanupResponse, error)

	// Reads
	ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error)
	GetGrant(ctx context.Context, sessionID string) (*model.DelegationGrant, error)
	GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error)
	ConfirmActive(ctx context.Context, sessionID string) (*model.SessionMirror, error)
	GetAccount(ctx context.Context, wallet string) (*model.Account, error)
	EstimateFees(ctx context.Context, trades uint64, priority string) (*FeeEstimateResponse, error)

	// Key custody
	GenerateAgentKey(ctx context.Context) (*AgentKeyResponse, error)

	// Dev-only
	Faucet(ctx context.Context, wallet string, amount uint64) (*model.Account, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateSessionRequest holds parameters for opening a session.
type CreateSessionRequest struct {
	Owner           string `json:"owner,omitempty"`
	Agent           string `json:"agent"`
	DurationSeconds int64  `json:"duration_seconds"`
	MaxDeposit      uint64 `json:"max_deposit"`
}

// ListSessionsRequest holds parameters for listing sessions.
type ListSessionsRequest struct {
	Owner  string `json:"owner,omitempty"`
	Agent  string `json:"agent,omitempty"`
	Active *bool  `json:"active,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListSessionsResponse is the response from ListSessions.
type ListSessionsResponse struct {
	Sessions []*model.VaultSession `json:"sessions"`
	Total    int                   `json:"total"`
}

// RevokeResponse reports the outcome of a revocation.
type RevokeResponse struct {
	Session *model.VaultSession `json:"session"`
	Refund  uint64              `json:"refund"`
}

// CleanupResponse reports how a reclaimed pool was distributed.
type CleanupResponse struct {
	Reward uint64 `json:"reward"`
	Refund uint64 `json:"refund"`
}

// AgentKeyResponse carries a freshly minted agent address and the private
// half sealed under the server's key-encryption key.
type AgentKeyResponse struct {
	Agent     string                `json:"agent"`
	SealedKey *keycustody.SealedKey `json:"sealed_key"`
}

// FeeEstimateResponse sizes a deposit for a number of trades at a priority.
type FeeEstimateResponse struct {
	Priority    string `json:"priority"`
	Trades      uint64 `json:"trades"`
	FeePerTrade uint64 `json:"fee_per_trade"`
	Deposit     uint64 `json:"deposit"`
}
