package repository

import (
	"context"

	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// JournalRepository records committed faucet operations and their idempotency keys.
type JournalRepository interface {
	// GetByIdem returns the entry recorded under idem, or ErrNotFound.
	GetByIdem(ctx context.Context, idem string) (*model.JournalEntry, error)
	Insert(ctx context.Context, e model.JournalEntry) error
}

type journalRepo struct {
	db *sqlx.DB
}

func NewJournalRepository(db *sqlx.DB) JournalRepository { return &journalRepo{db: db} }

func (r *journalRepo) GetByIdem(ctx context.Context, idem string) (*model.JournalEntry, error) {
	var e model.JournalEntry
	err := connFrom(ctx, r.db).GetContext(ctx, &e, `
		SELECT id, faucet_id, op, actor, account, quantity, amount, fee, idempotency_key, created_at
		FROM faucet_journal
		WHERE idempotency_key = ?
		LIMIT 1
	`, idem)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *journalRepo) Insert(ctx context.Context, e model.JournalEntry) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO faucet_journal
		    (id, faucet_id, op, actor, account, quantity, amount, fee, idempotency_key, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.FaucetID, e.Op.String(), e.Actor, e.Account, e.Quantity, e.Amount, e.Fee,
		e.IdempotencyKey, e.CreatedAt)
	return duplicate(err)
}
