package repository

import (
	"context"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type FaucetRepository interface {
	Insert(ctx context.Context, f model.Faucet) error
	Get(ctx context.Context, id identity.ID) (*model.Faucet, error)
	GetForUpdate(ctx context.Context, id identity.ID) (*model.Faucet, error)
	Update(ctx context.Context, f model.Faucet) error
}

type FaucetRepositoryImpl struct {
	db *sqlx.DB
}

func NewFaucetRepository(db *sqlx.DB) *FaucetRepositoryImpl {
	return &FaucetRepositoryImpl{db: db}
}

var _ FaucetRepository = (*FaucetRepositoryImpl)(nil)

const faucetColumns = `id, price, amount, interval_sec, max_quantity, authority, beneficiary,
	       token_type, custody_bump, created_at, updated_at`

func (r *FaucetRepositoryImpl) Insert(ctx context.Context, f model.Faucet) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO faucets
		    (id, price, amount, interval_sec, max_quantity, authority, beneficiary,
		     token_type, custody_bump, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, f.ID, f.Price, f.Amount, f.Interval, f.MaxQuantity, f.Authority, f.Beneficiary,
		f.TokenType, f.CustodyBump)
	return duplicate(err)
}

// Get reads the faucet without locking; concurrent payouts only read it.
func (r *FaucetRepositoryImpl) Get(ctx context.Context, id identity.ID) (*model.Faucet, error) {
	var f model.Faucet
	err := connFrom(ctx, r.db).GetContext(ctx, &f,
		`SELECT `+faucetColumns+` FROM faucets WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (r *FaucetRepositoryImpl) GetForUpdate(ctx context.Context, id identity.ID) (*model.Faucet, error) {
	var f model.Faucet
	err := connFrom(ctx, r.db).GetContext(ctx, &f,
		`SELECT `+faucetColumns+` FROM faucets WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (r *FaucetRepositoryImpl) Update(ctx context.Context, f model.Faucet) error {
	res, err := connFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE faucets
		SET price = ?, amount = ?, interval_sec = ?, max_quantity = ?, authority = ?,
		    beneficiary = ?, token_type = ?, custody_bump = ?, updated_at = NOW()
		WHERE id = ?
	`, f.Price, f.Amount, f.Interval, f.MaxQuantity, f.Authority, f.Beneficiary,
		f.TokenType, f.CustodyBump, f.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for an unchanged row too; confirm existence.
		if _, err := r.Get(ctx, f.ID); err != nil {
			return err
		}
	}
	return nil
}
