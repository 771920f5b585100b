package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/repository/memory"
)

func TestSeedDemo_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	led := ledger.New(m.TokenTypes(), m.TokenAccounts(), m.Native(), 100)

	require.NoError(t, seedDemo(ctx, m, m.Signers(), led, zap.NewNop()))
	require.NoError(t, seedDemo(ctx, m, m.Signers(), led, zap.NewNop()))

	s, err := m.Signers().GetByAPIKey(ctx, demoSigners[1].apiKey)
	require.NoError(t, err)
	assert.Equal(t, identity.FromSeed([]byte("demo/signer/alice")), s.Identity)
	assert.True(t, s.Active())

	wallet, err := identity.Associated(s.Identity, demoToken.ID)
	require.NoError(t, err)

	var native uint64
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := led.Account(ctx, wallet)
		if err != nil {
			return err
		}
		assert.EqualValues(t, demoTokens, acc.Balance)
		native, err = led.NativeBalance(ctx, s.Identity)
		return err
	}))
	assert.EqualValues(t, demoNative-100, native)
}
