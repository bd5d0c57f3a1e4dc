package art

import "time"

// Piece is a generated art work. UserID tracks the current owner and changes
// on marketplace purchase; CreatorWallet never changes. MintedNFTAddress is
// set at most once: once a piece is minted it stays minted.
type Piece struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	ImageURL         string    `json:"image_url"`
	StorageKey       string    `json:"-"`
	IsMinted         bool      `json:"is_minted"`
	MintedNFTAddress string    `json:"minted_nft_address,omitempty"`
	MintedTokenURI   string    `json:"minted_token_uri,omitempty"`
	CreatorWallet    string    `json:"creator_wallet"`
	OwnerWallet      string    `json:"owner_wallet"`
	CreatedAt        time.Time `json:"created_at"`
}

// Metadata is the token metadata handed to the client for a wallet-signed
// mint transaction.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Attribute is a single trait on token metadata.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}
