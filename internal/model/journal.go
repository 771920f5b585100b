package model

import (
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

type Operation string

const (
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDeposit  Operation = "deposit"
	OpWithdraw Operation = "withdraw"
	OpPayout   Operation = "payout"
	OpClose    Operation = "close"
)

func (o Operation) String() string { return string(o) }

// JournalEntry is the durable record of a committed faucet operation.
type JournalEntry struct {
	ID             string      `db:"id"              json:"id"`
	FaucetID       identity.ID `db:"faucet_id"       json:"faucet_id"`
	Op             Operation   `db:"op"              json:"op"`
	Actor          identity.ID `db:"actor"           json:"actor"`
	Account        identity.ID `db:"account"         json:"account"` // counterparty token account
	Quantity       uint16      `db:"quantity"        json:"quantity,omitempty"`
	Amount         uint64      `db:"amount"          json:"amount"`
	Fee            uint64      `db:"fee"             json:"fee,omitempty"`
	IdempotencyKey *string     `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time   `db:"created_at"      json:"created_at"`
}
