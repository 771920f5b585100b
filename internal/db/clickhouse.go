package db

import (
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/faucet-gateway/internal/config"
)

// NewClickHouse opens the payout history store, e.g.
// clickhouse://default:@localhost:9000/faucet?dial_timeout=5s&compress=true
func NewClickHouse(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	db := sqlx.NewDb(clickhouse.OpenDB(opts), "clickhouse")
	if err := configure(db, cfg, 3*time.Second); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return db, nil
}
