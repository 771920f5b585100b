package repository

import (
	"context"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmoiron/sqlx"
)

// NativeRepository stores fee-asset balances.
type NativeRepository interface {
	UpsertAccount(ctx context.Context, id identity.ID) error
	GetForUpdate(ctx context.Context, id identity.ID) (uint64, error)
	SetBalance(ctx context.Context, id identity.ID, balance uint64) error
}

type nativeRepo struct {
	db *sqlx.DB
}

func NewNativeRepository(db *sqlx.DB) NativeRepository { return &nativeRepo{db: db} }

func (r *nativeRepo) UpsertAccount(ctx context.Context, id identity.ID) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO native_accounts (identity, balance, updated_at)
		VALUES (?, 0, NOW())
		ON DUPLICATE KEY UPDATE identity = identity
	`, id)
	return err
}

func (r *nativeRepo) GetForUpdate(ctx context.Context, id identity.ID) (uint64, error) {
	var bal uint64
	err := connFrom(ctx, r.db).QueryRowxContext(ctx, `
		SELECT balance
		FROM native_accounts
		WHERE identity = ?
		FOR UPDATE
	`, id).Scan(&bal)
	if err != nil {
		return 0, notFound(err)
	}
	return bal, nil
}

func (r *nativeRepo) SetBalance(ctx context.Context, id identity.ID, balance uint64) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE native_accounts
		SET balance = ?, updated_at = NOW()
		WHERE identity = ?
	`, balance, id)
	return err
}
