package model

import (
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// Faucet is the persisted configuration of one deployed faucet.
type Faucet struct {
	ID          identity.ID `db:"id"           json:"id"`
	Price       uint64      `db:"price"        json:"price"`        // fee per unit of quantity
	Amount      uint64      `db:"amount"       json:"amount"`       // tokens per unit of quantity
	Interval    int64       `db:"interval_sec" json:"interval"`     // rolling window, seconds
	MaxQuantity uint16      `db:"max_quantity" json:"max_quantity"` // 0 = closed
	Authority   identity.ID `db:"authority"    json:"authority"`
	Beneficiary identity.ID `db:"beneficiary"  json:"beneficiary"`
	TokenType   identity.ID `db:"token_type"   json:"token_type"`
	CustodyBump uint8       `db:"custody_bump" json:"custody_bump"`
	CreatedAt   time.Time   `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"   json:"updated_at"`
}

// Closed reports whether the faucet refuses payouts.
func (f *Faucet) Closed() bool { return f.MaxQuantity == 0 }

// Custody returns the address of the faucet's custody token account.
func (f *Faucet) Custody() (identity.ID, error) {
	return identity.CustodyWithBump(f.ID, f.CustodyBump)
}

// FaucetPatch is a sparse update: nil fields are left untouched.
type FaucetPatch struct {
	Price       *uint64      `json:"price,omitempty"`
	Amount      *uint64      `json:"amount,omitempty"`
	Interval    *int64       `json:"interval,omitempty"`
	MaxQuantity *uint16      `json:"max_quantity,omitempty"`
	Authority   *identity.ID `json:"authority,omitempty"`
	Beneficiary *identity.ID `json:"beneficiary,omitempty"`
	TokenType   *identity.ID `json:"token_type,omitempty"`
	CustodyBump *uint8       `json:"custody_bump,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p FaucetPatch) Empty() bool {
	return p.Price == nil && p.Amount == nil && p.Interval == nil && p.MaxQuantity == nil &&
		p.Authority == nil && p.Beneficiary == nil && p.TokenType == nil && p.CustodyBump == nil
}

// Apply writes every present field onto f.
func (p FaucetPatch) Apply(f *Faucet) {
	if p.Price != nil {
		f.Price = *p.Price
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.Interval != nil {
		f.Interval = *p.Interval
	}
	if p.MaxQuantity != nil {
		f.MaxQuantity = *p.MaxQuantity
	}
	if p.Authority != nil {
		f.Authority = *p.Authority
	}
	if p.Beneficiary != nil {
		f.Beneficiary = *p.Beneficiary
	}
	if p.TokenType != nil {
		f.TokenType = *p.TokenType
	}
	if p.CustodyBump != nil {
		f.CustodyBump = *p.CustodyBump
	}
}
