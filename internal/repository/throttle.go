package repository

import (
	"context"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// ThrottleRepository persists per-requester payout windows.
type ThrottleRepository interface {
	// Ensure creates rec with a zero window when no row exists for rec.ID.
	Ensure(ctx context.Context, rec model.ThrottleRecord) error
	Get(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error)
	GetForUpdate(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error)
	Save(ctx context.Context, rec model.ThrottleRecord) error
}

type throttleRepo struct {
	db *sqlx.DB
}

func NewThrottleRepository(db *sqlx.DB) ThrottleRepository { return &throttleRepo{db: db} }

func (r *throttleRepo) Ensure(ctx context.Context, rec model.ThrottleRecord) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO throttle_records (id, faucet_id, requester, window_start, count, updated_at)
		VALUES (?, ?, ?, 0, 0, NOW())
		ON DUPLICATE KEY UPDATE id = id
	`, rec.ID, rec.FaucetID, rec.Requester)
	return err
}

func (r *throttleRepo) Get(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error) {
	var rec model.ThrottleRecord
	err := connFrom(ctx, r.db).GetContext(ctx, &rec, `
		SELECT id, faucet_id, requester, window_start, count, updated_at
		FROM throttle_records
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *throttleRepo) GetForUpdate(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error) {
	var rec model.ThrottleRecord
	err := connFrom(ctx, r.db).GetContext(ctx, &rec, `
		SELECT id, faucet_id, requester, window_start, count, updated_at
		FROM throttle_records
		WHERE id = ?
		FOR UPDATE
	`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *throttleRepo) Save(ctx context.Context, rec model.ThrottleRecord) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE throttle_records
		SET window_start = ?, count = ?, updated_at = NOW()
		WHERE id = ?
	`, rec.WindowStart, rec.Count, rec.ID)
	return err
}
