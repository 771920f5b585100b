package model

import (
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// PayoutRow is one row of the ClickHouse payout history.
type PayoutRow struct {
	ID          string      `db:"id"          json:"id"`
	FaucetID    identity.ID `db:"faucet_id"   json:"faucet_id"`
	Requester   identity.ID `db:"requester"   json:"requester"`
	Account     identity.ID `db:"account"     json:"account"`
	TokenType   identity.ID `db:"token_type"  json:"token_type"`
	Quantity    uint16      `db:"quantity"    json:"quantity"`
	Amount      uint64      `db:"amount"      json:"amount"`
	Fee         uint64      `db:"fee"         json:"fee"`
	Beneficiary identity.ID `db:"beneficiary" json:"beneficiary"`
	CreatedAt   time.Time   `db:"created_at"  json:"created_at"`
}

// PayoutRowFromEvent converts a payout event into its history row.
func PayoutRowFromEvent(ev Event) PayoutRow {
	return PayoutRow{
		ID:          ev.ID,
		FaucetID:    ev.FaucetID,
		Requester:   ev.Actor,
		Account:     ev.Account,
		TokenType:   ev.TokenType,
		Quantity:    ev.Quantity,
		Amount:      ev.Amount,
		Fee:         ev.Fee,
		Beneficiary: ev.Beneficiary,
		CreatedAt:   time.Unix(ev.At, 0).UTC(),
	}
}
