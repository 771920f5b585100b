package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// PayoutFilter narrows a payout history query. Zero fields are ignored.
type PayoutFilter struct {
	Requester identity.ID
	FaucetID  identity.ID
	Limit     int
	Offset    int
}

// PayoutHistoryRepository is the ClickHouse read model of committed payouts.
type PayoutHistoryRepository interface {
	InsertBatch(ctx context.Context, rows []model.PayoutRow) error
	List(ctx context.Context, f PayoutFilter) ([]model.PayoutRow, error)
}

type chPayoutsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHPayoutsRepository(ch *sqlx.DB) PayoutHistoryRepository {
	return &chPayoutsRepository{ch: ch}
}

// InsertBatch writes rows in one ClickHouse batch. The table is a ReplacingMergeTree on
// id, so redelivered events collapse on merge.
func (r *chPayoutsRepository) InsertBatch(ctx context.Context, rows []model.PayoutRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO faucet.payouts
		    (id, faucet_id, requester, account, token_type, quantity, amount, fee, beneficiary, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, rw := range rows {
		if _, err := stmt.ExecContext(ctx,
			rw.ID, rw.FaucetID.String(), rw.Requester.String(), rw.Account.String(),
			rw.TokenType.String(), rw.Quantity, rw.Amount, rw.Fee, rw.Beneficiary.String(),
			rw.CreatedAt,
		); err != nil {
			return fmt.Errorf("append %s: %w", rw.ID, err)
		}
	}
	return tx.Commit()
}

func (r *chPayoutsRepository) List(ctx context.Context, f PayoutFilter) ([]model.PayoutRow, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, faucet_id, requester, account, token_type, quantity, amount, fee, beneficiary, created_at
		FROM faucet.payouts FINAL
		WHERE 1 = 1
	`
	args := []any{}

	if !f.Requester.IsZero() {
		q += " AND requester = ?"
		args = append(args, f.Requester.String())
	}
	if !f.FaucetID.IsZero() {
		q += " AND faucet_id = ?"
		args = append(args, f.FaucetID.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.PayoutRow
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
