package model

import "time"

// Account is a wallet balance row. Vault pool accounts use the derived
// va- address; owner and agent wallets use whatever identity the execution
// layer proved.
type Account struct {
	Wallet    string    `json:"wallet"`
	Balance   uint64    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
