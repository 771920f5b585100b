package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/db"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/repository/memory"
)

// storage holds the repositories every command builds its services from.
type storage struct {
	tx       repository.Transactor
	faucets  repository.FaucetRepository
	throttle repository.ThrottleRepository
	types    repository.TokenTypeRepository
	accounts repository.TokenAccountRepository
	native   repository.NativeRepository
	signers  repository.SignersRepository
	journal  repository.JournalRepository
	outbox   repository.OutboxRepository
	history  repository.PayoutHistoryRepository

	redis   *redis.Client
	closers []func() error
	pingers []func(ctx context.Context) error
}

func (s *storage) newLedger(cfg config.Config) *ledger.Ledger {
	return ledger.New(s.types, s.accounts, s.native, cfg.Ledger.AccountRent)
}

func (s *storage) health(ctx context.Context) error {
	for _, p := range s.pingers {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStorage wires the configured storage driver. Redis is optional: without it
// rate limiting falls back to per-instance buckets.
func openStorage(cfg config.Config, log *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		m := memory.New()
		log.Warn("using in-memory storage; state is lost on exit")
		return &storage{
			tx:       m,
			faucets:  m.Faucets(),
			throttle: m.Throttle(),
			types:    m.TokenTypes(),
			accounts: m.TokenAccounts(),
			native:   m.Native(),
			signers:  m.Signers(),
			journal:  m.Journal(),
			outbox:   m.Outbox(),
			history:  m.PayoutHistory(),
		}, nil

	case "mysql", "":
		s := &storage{}
		mysqlDB, err := db.NewMySQL(cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		s.closers = append(s.closers, mysqlDB.Close)
		s.pingers = append(s.pingers, mysqlDB.PingContext)

		s.tx = repository.NewTransactor(mysqlDB)
		s.faucets = repository.NewFaucetRepository(mysqlDB)
		s.throttle = repository.NewThrottleRepository(mysqlDB)
		s.types = repository.NewTokenTypeRepository(mysqlDB)
		s.accounts = repository.NewTokenAccountRepository(mysqlDB)
		s.native = repository.NewNativeRepository(mysqlDB)
		s.signers = repository.NewSignersRepository(mysqlDB)
		s.journal = repository.NewJournalRepository(mysqlDB)
		s.outbox = repository.NewOutboxRepository(mysqlDB)

		chDB, err := db.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse connect: %w", err)
		}
		s.closers = append(s.closers, chDB.Close)
		s.history = repository.NewCHPayoutsRepository(chDB)

		rdb, err := db.NewRedis(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, rate limiting per instance", zap.Error(err))
		} else {
			s.redis = rdb
			s.closers = append(s.closers, rdb.Close)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openMySQL is used by commands that only touch the transactional store.
func openMySQL(cfg config.Config) (*sqlx.DB, error) {
	dbx, err := db.NewMySQL(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return dbx, nil
}
