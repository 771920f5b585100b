package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type SignersRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Signer, error)
	Upsert(ctx context.Context, s model.Signer) error
}

type SignersRepositoryImpl struct {
	db *sqlx.DB
}

func NewSignersRepository(db *sqlx.DB) *SignersRepositoryImpl {
	return &SignersRepositoryImpl{db: db}
}

var _ SignersRepository = (*SignersRepositoryImpl)(nil)

// GetByAPIKey returns nil, nil for an unknown key.
func (r *SignersRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Signer, error) {
	var s model.Signer
	err := connFrom(ctx, r.db).GetContext(ctx, &s, `
		SELECT api_key, identity, name, status, rate_limit_rps, created_at, updated_at
		  FROM signers
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert is idempotent on api_key.
func (r *SignersRepositoryImpl) Upsert(ctx context.Context, s model.Signer) error {
	_, err := connFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO signers
		    (api_key, identity, name, status, rate_limit_rps, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    identity       = VALUES(identity),
		    name           = VALUES(name),
		    status         = VALUES(status),
		    rate_limit_rps = VALUES(rate_limit_rps),
		    updated_at     = VALUES(updated_at)
	`, s.APIKey, s.Identity, s.Name, string(s.Status), s.RateLimitRPS)
	return err
}
