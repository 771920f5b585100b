package model

import (
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// TokenType describes a fungible token the ledger can hold.
type TokenType struct {
	ID        identity.ID `db:"id"         json:"id"`
	Symbol    string      `db:"symbol"     json:"symbol"`
	Decimals  uint8       `db:"decimals"   json:"decimals"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// TokenAccount holds a balance of one token type. Owner is the identity allowed to
// move funds out of it; custody accounts own themselves.
type TokenAccount struct {
	ID        identity.ID `db:"id"         json:"id"`
	TokenType identity.ID `db:"token_type" json:"token_type"`
	Owner     identity.ID `db:"owner"      json:"owner"`
	Balance   uint64      `db:"balance"    json:"balance"`
	Rent      uint64      `db:"rent"       json:"rent"` // reserved fee-asset deposit, refunded on close
	Closed    bool        `db:"closed"     json:"closed"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// NativeAccount is an identity's balance of the fee asset.
type NativeAccount struct {
	Identity  identity.ID `db:"identity"   json:"identity"`
	Balance   uint64      `db:"balance"    json:"balance"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
