package repository

import (
	"context"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type TokenTypeRepository interface {
	Insert(ctx context.Context, t model.TokenType) error
	Get(ctx context.Context, id identity.ID) (*model.TokenType, error)
}

type TokenAccountRepository interface {
	Insert(ctx context.Context, a model.TokenAccount) error
	Get(ctx context.Context, id identity.ID) (*model.TokenAccount, error)
	GetForUpdate(ctx context.Context, id identity.ID) (*model.TokenAccount, error)
	// Save writes balance, owner, rent and closed.
	Save(ctx context.Context, a model.TokenAccount) error
}

type tokenTypeRepo struct {
	db *sqlx.DB
}

func NewTokenTypeRepository(db *sqlx.DB) TokenTypeRepository { return &tokenTypeRepo{db: db} }

func (r *tokenTypeRepo) Insert(ctx context.Context, t model.TokenType) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO token_types (id, symbol, decimals, created_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE symbol = VALUES(symbol), decimals = VALUES(decimals)
	`, t.ID, t.Symbol, t.Decimals)
	return err
}

func (r *tokenTypeRepo) Get(ctx context.Context, id identity.ID) (*model.TokenType, error) {
	var t model.TokenType
	err := connFrom(ctx, r.db).GetContext(ctx, &t,
		`SELECT id, symbol, decimals, created_at FROM token_types WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

type tokenAccountRepo struct {
	db *sqlx.DB
}

func NewTokenAccountRepository(db *sqlx.DB) TokenAccountRepository {
	return &tokenAccountRepo{db: db}
}

const tokenAccountColumns = `id, token_type, owner, balance, rent, closed, created_at, updated_at`

func (r *tokenAccountRepo) Insert(ctx context.Context, a model.TokenAccount) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO token_accounts (id, token_type, owner, balance, rent, closed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, a.ID, a.TokenType, a.Owner, a.Balance, a.Rent, a.Closed)
	return duplicate(err)
}

func (r *tokenAccountRepo) Get(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	var a model.TokenAccount
	err := connFrom(ctx, r.db).GetContext(ctx, &a,
		`SELECT `+tokenAccountColumns+` FROM token_accounts WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *tokenAccountRepo) GetForUpdate(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	var a model.TokenAccount
	err := connFrom(ctx, r.db).GetContext(ctx, &a,
		`SELECT `+tokenAccountColumns+` FROM token_accounts WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *tokenAccountRepo) Save(ctx context.Context, a model.TokenAccount) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE token_accounts
		SET balance = ?, owner = ?, rent = ?, closed = ?, updated_at = NOW()
		WHERE id = ?
	`, a.Balance, a.Owner, a.Rent, a.Closed, a.ID)
	return err
}
