package events

import (
	"context"

	"github.com/oakmere/vaultd/internal/model"
)

// Event topic constants
const (
	TopicSessionCreated   = "vault.session.created"
	TopicSessionDelegated = "vault.session.delegated"
	TopicSessionDeposited = "vault.session.deposited"
	TopicSessionSpent     = "vault.session.spent"
	TopicSessionRevoked   = "vault.session.revoked"
	TopicSessionCleaned   = "vault.session.cleaned"
)

// Event types

type SessionCreated struct {
	Session *model.VaultSession `json:"session"`
}

type SessionDelegated struct {
	Session *model.VaultSession    `json:"session"`
	Grant   *model.DelegationGrant `json:"grant"`
}

type SessionDeposited struct {
	Session *model.VaultSession `json:"session"`
	Amount  uint64              `json:"amount"`
}

type SessionSpent struct {
	Session *model.VaultSession `json:"session"`
	Amount  uint64              `json:"amount"`
	Spender string              `json:"spender"`
}

type SessionRevoked struct {
	Session *model.VaultSession `json:"session"`
	Refund  uint64              `json:"refund"`
}

type SessionCleaned struct {
	SessionID string `json:"session_id"`
	Owner     string `json:"owner"`
	Agent     string `json:"agent"`
	Caller    string `json:"caller"`
	Reward    uint64 `json:"reward"`
	Refund    uint64 `json:"refund"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
