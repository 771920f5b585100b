package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQL(t *testing.T) {
	scripts, err := MySQL()
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
	assert.Equal(t, "001_init.sql", scripts[0].Name)

	for _, table := range []string{"faucets", "throttle_records", "token_accounts", "faucet_journal", "outbox", "signers"} {
		assert.Contains(t, scripts[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestClickHouse_OneStatementEach(t *testing.T) {
	scripts, err := ClickHouse()
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Contains(t, scripts[0].SQL, "CREATE DATABASE")
	assert.Contains(t, scripts[1].SQL, "ReplacingMergeTree")
	for _, s := range scripts {
		assert.NotContains(t, strings.TrimSpace(s.SQL), ";")
	}
}
