package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	httpSrv "github.com/jmehdipour/faucet-gateway/internal/http"
	"github.com/jmehdipour/faucet-gateway/internal/logger"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/service/faucet"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Format)
		defer func() { _ = log.Sync() }()

		scope, ok := model.ParseThrottleScope(cfg.Throttle.Scope)
		if !ok {
			return fmt.Errorf("invalid throttle scope %q", cfg.Throttle.Scope)
		}

		st, err := openStorage(cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		led := st.newLedger(cfg)
		if cfg.Storage.Driver == "memory" {
			// nothing persists between runs, so start from the demo data
			if err := seedDemo(cmd.Context(), st.tx, st.signers, led, log); err != nil {
				return fmt.Errorf("seed memory store: %w", err)
			}
		}

		svc := faucet.New(st.tx, st.faucets, st.throttle, st.journal, st.outbox, led,
			faucet.WithLogger(log),
			faucet.WithThrottleScope(scope),
		)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Faucets: svc,
			Signers: st.signers,
			History: st.history,
			Redis:   st.redis,
			Health:  st.health,
			Log:     log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
