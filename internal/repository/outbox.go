package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox event, joining the transaction carried by ctx if any.
	Insert(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

// Insert adds an event row to outbox. Debezium Outbox SMT will pick it up and
// publish to Kafka based on the `topic` column.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`
	_, err := connFrom(ctx, r.db).ExecContext(ctx, q, aggregate, aggregateID, topic, payload)
	return err
}
