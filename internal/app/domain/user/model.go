package user

import "time"

// User is an application identity keyed by wallet address. Users are created
// lazily the first time a wallet authenticates and are never deleted in-flow.
type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}
