package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/logger"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a demo token type and signers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Format)

		dbx, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer dbx.Close()

		led := ledger.New(
			repository.NewTokenTypeRepository(dbx),
			repository.NewTokenAccountRepository(dbx),
			repository.NewNativeRepository(dbx),
			cfg.Ledger.AccountRent,
		)
		return seedDemo(cmd.Context(), repository.NewTransactor(dbx), repository.NewSignersRepository(dbx), led, log)
	},
}

type demoSigner struct {
	name   string
	apiKey string
	status model.SignerStatus
	rps    *int
}

var (
	demoToken = model.TokenType{
		ID:       identity.FromSeed([]byte("demo/token/DRIP")),
		Symbol:   "DRIP",
		Decimals: 6,
	}

	demoSigners = []demoSigner{
		{name: "faucet-operator", apiKey: "11111111111111111111111111111111", status: model.SignerActive, rps: intptr(50)},
		{name: "alice", apiKey: "22222222222222222222222222222222", status: model.SignerActive, rps: intptr(5)},
		{name: "bob", apiKey: "33333333333333333333333333333333", status: model.SignerActive},
		{name: "mallory", apiKey: "44444444444444444444444444444444", status: model.SignerSuspended},
	}
)

const (
	demoNative = 100_000_000
	demoTokens = 1_000_000_000
)

// seedDemo registers the demo token type and signers, then funds each signer's native
// balance and associated token account. Re-running it leaves funded signers untouched.
func seedDemo(ctx context.Context, tx repository.Transactor, signers repository.SignersRepository, led *ledger.Ledger, log *zap.Logger) error {
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := led.TokenType(ctx, demoToken.ID)
		if errors.Is(err, ledger.ErrUnknownTokenType) {
			return led.RegisterTokenType(ctx, demoToken)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("register token type: %w", err)
	}
	log.Info("token type ready", zap.String("symbol", demoToken.Symbol), zap.Stringer("id", demoToken.ID))

	for _, d := range demoSigners {
		id := identity.FromSeed([]byte("demo/signer/" + d.name))
		if err := signers.Upsert(ctx, model.Signer{
			APIKey:       d.apiKey,
			Identity:     id,
			Name:         d.name,
			Status:       d.status,
			RateLimitRPS: d.rps,
		}); err != nil {
			return fmt.Errorf("upsert signer %q: %w", d.name, err)
		}

		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			bal, err := led.NativeBalance(ctx, id)
			if err != nil {
				return err
			}
			if bal == 0 {
				if err := led.CreditNative(ctx, id, demoNative); err != nil {
					return err
				}
			}

			wallet, err := identity.Associated(id, demoToken.ID)
			if err != nil {
				return err
			}
			if _, err := led.Account(ctx, wallet); err == nil {
				return nil
			} else if !errors.Is(err, ledger.ErrAccountNotFound) {
				return err
			}
			if _, err := led.OpenAssociated(ctx, id, demoToken.ID, id); err != nil {
				return err
			}
			return led.Mint(ctx, wallet, demoTokens)
		})
		if err != nil {
			return fmt.Errorf("fund signer %q: %w", d.name, err)
		}
		log.Info("signer seeded", zap.String("name", d.name), zap.Stringer("identity", id), zap.String("status", string(d.status)))
	}
	return nil
}

func intptr(i int) *int { return &i }
