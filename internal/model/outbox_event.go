package model

import "time"

// Outbox topics. Debezium's outbox SMT routes rows by the topic column.
const (
	TopicFaucetEvents  = "faucet.events"
	TopicFaucetPayouts = "faucet.payouts"
)

// OutboxEvent is a row waiting to be relayed to Kafka.
type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // "faucet"
	AggregateID string    `db:"aggregate_id"` // faucet id
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

// TopicFor routes payouts to their own topic so the history worker only sees payouts.
func TopicFor(op Operation) string {
	if op == OpPayout {
		return TopicFaucetPayouts
	}
	return TopicFaucetEvents
}
