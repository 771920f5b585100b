package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, "faucet", cfg.Throttle.Scope)
	assert.Equal(t, "faucet.payouts", cfg.Kafka.PayoutsTopic)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.Kafka.Brokers)
	assert.EqualValues(t, 2039280, cfg.Ledger.AccountRent)
	assert.Equal(t, time.Second, cfg.History.BatchWait)
	assert.Equal(t, 3, cfg.History.Breaker.FailThreshold)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
storage:
  driver: memory
throttle:
  scope: global
`), 0o600))

	t.Setenv("FAUCETGW_HTTP_ADDR", ":9100")
	t.Setenv("FAUCETGW_LEDGER_ACCOUNT_RENT", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "global", cfg.Throttle.Scope)
	assert.EqualValues(t, 42, cfg.Ledger.AccountRent)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.RateLimit.RPS)
}
