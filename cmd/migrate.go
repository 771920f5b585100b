package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/db"
	"github.com/jmehdipour/faucet-gateway/internal/logger"
	"github.com/jmehdipour/faucet-gateway/migrations"
)

var skipClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create MySQL and ClickHouse tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Format)

		sqlDB, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		scripts, err := migrations.MySQL()
		if err != nil {
			return fmt.Errorf("read mysql migrations: %w", err)
		}
		for _, s := range scripts {
			if _, err := sqlDB.ExecContext(cmd.Context(), s.SQL); err != nil {
				return fmt.Errorf("exec %s: %w", s.Name, err)
			}
			log.Info("mysql migration applied", zap.String("file", s.Name))
		}

		if skipClickHouse {
			return nil
		}

		chDB, err := db.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		stmts, err := migrations.ClickHouse()
		if err != nil {
			return fmt.Errorf("read clickhouse migrations: %w", err)
		}
		for _, s := range stmts {
			if _, err := chDB.ExecContext(cmd.Context(), s.SQL); err != nil {
				return fmt.Errorf("exec %s: %w", s.Name, err)
			}
		}
		log.Info("clickhouse migrations applied", zap.Int("statements", len(stmts)))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&skipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}
