package credits

import "time"

// Transaction status values. A transaction is append-only; the only permitted
// mutation is the pending -> completed|failed transition.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Account tracks the spendable credit balance for a user. The balance never
// goes negative; every mutation is attributed to exactly one Transaction.
type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"credits_balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction records a single balance mutation. Positive amounts are
// deposits, negative amounts are spends. TransactionHash is the external
// reference used for deposit idempotence.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Amount          int64     `json:"amount"`
	Status          string    `json:"status"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
