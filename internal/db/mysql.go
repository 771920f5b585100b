package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/faucet-gateway/internal/config"
)

// NewMySQL opens the transactional store. Timestamps are always parsed in UTC and
// multi-statement scripts are allowed so migrate can apply whole files.
func NewMySQL(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("empty MySQL DSN")
	}
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.MultiStatements = true

	db, err := sqlx.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := configure(db, cfg, 5*time.Second); err != nil {
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return db, nil
}
