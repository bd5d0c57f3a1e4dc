package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing status values. Listings are never hard-deleted; cancel and purchase
// transition the status instead.
const (
	StatusActive    = "active"
	StatusSold      = "sold"
	StatusCancelled = "cancelled"
)

// Listing is a fixed-price offer for a minted art piece. At most one active
// listing may exist per art piece at any time.
type Listing struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ArtID        string          `json:"art_id"`
	NFTAddress   string          `json:"nft_address"`
	Price        decimal.Decimal `json:"price"`
	Status       string          `json:"status"`
	TokenAccount string          `json:"token_account,omitempty"`
	BuyerID      string          `json:"buyer_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
