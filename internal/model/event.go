package model

import (
	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// Event is the payload published to Kafka (via the outbox) for a committed operation.
type Event struct {
	ID          string      `json:"id"` // journal entry ULID
	Op          Operation   `json:"op"`
	FaucetID    identity.ID `json:"faucet_id"`
	Actor       identity.ID `json:"actor"`
	Account     identity.ID `json:"account"`
	TokenType   identity.ID `json:"token_type"`
	Quantity    uint16      `json:"quantity,omitempty"`
	Amount      uint64      `json:"amount"`
	Fee         uint64      `json:"fee,omitempty"`
	Beneficiary identity.ID `json:"beneficiary,omitempty"`
	WindowStart int64       `json:"window_start,omitempty"`
	WindowCount uint16      `json:"window_count,omitempty"`
	At          int64       `json:"at"` // unix seconds
}
