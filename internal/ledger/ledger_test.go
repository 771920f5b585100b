package ledger_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/repository/memory"
)

const rent = 5

func setup(t *testing.T) (context.Context, *memory.Store, *ledger.Ledger, identity.ID) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	l := ledger.New(store.TokenTypes(), store.TokenAccounts(), store.Native(), rent)
	tt := identity.New()
	require.NoError(t, l.RegisterTokenType(ctx, model.TokenType{ID: tt, Symbol: "TST"}))
	return ctx, store, l, tt
}

func open(t *testing.T, ctx context.Context, l *ledger.Ledger, owner, tt identity.ID, balance uint64) identity.ID {
	t.Helper()
	require.NoError(t, l.CreditNative(ctx, owner, rent))
	acc, err := l.OpenAssociated(ctx, owner, tt, owner)
	require.NoError(t, err)
	require.NoError(t, l.Mint(ctx, acc.ID, balance))
	return acc.ID
}

func TestOpenAccount_ChargesRent(t *testing.T) {
	ctx, _, l, tt := setup(t)
	payer := identity.New()

	_, err := l.OpenAssociated(ctx, payer, tt, payer)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, l.CreditNative(ctx, payer, 12))
	acc, err := l.OpenAssociated(ctx, payer, tt, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), acc.Rent)
	assert.Equal(t, payer, acc.Owner)

	bal, err := l.NativeBalance(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), bal)

	// existing associated accounts are returned as is, without charging again
	again, err := l.OpenAssociated(ctx, payer, tt, payer)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)
	bal, err = l.NativeBalance(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), bal)

	_, err = l.OpenAccount(ctx, acc.ID, tt, payer, payer)
	require.ErrorIs(t, err, ledger.ErrAccountExists)

	_, err = l.OpenAccount(ctx, identity.New(), identity.New(), payer, payer)
	require.ErrorIs(t, err, ledger.ErrUnknownTokenType)
}

func TestTransfer(t *testing.T) {
	ctx, _, l, tt := setup(t)
	alice, bob := identity.New(), identity.New()
	a := open(t, ctx, l, alice, tt, 100)
	b := open(t, ctx, l, bob, tt, 0)

	require.NoError(t, l.Transfer(ctx, a, b, alice, 40))

	acc, err := l.Account(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), acc.Balance)
	acc, err = l.Account(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), acc.Balance)

	require.ErrorIs(t, l.Transfer(ctx, a, b, bob, 1), ledger.ErrOwnerMismatch)
	require.ErrorIs(t, l.Transfer(ctx, a, b, alice, 61), ledger.ErrInsufficientFunds)
	require.ErrorIs(t, l.Transfer(ctx, a, identity.New(), alice, 1), ledger.ErrAccountNotFound)
	require.NoError(t, l.Transfer(ctx, a, a, alice, 60))
}

func TestTransfer_TokenMismatch(t *testing.T) {
	ctx, _, l, tt := setup(t)
	other := identity.New()
	require.NoError(t, l.RegisterTokenType(ctx, model.TokenType{ID: other, Symbol: "OTH"}))

	alice := identity.New()
	a := open(t, ctx, l, alice, tt, 10)
	b := open(t, ctx, l, alice, other, 0)

	require.ErrorIs(t, l.Transfer(ctx, a, b, alice, 1), ledger.ErrTokenMismatch)
}

func TestTransfer_Overflow(t *testing.T) {
	ctx, _, l, tt := setup(t)
	alice, bob := identity.New(), identity.New()
	a := open(t, ctx, l, alice, tt, 1)
	b := open(t, ctx, l, bob, tt, math.MaxUint64)

	require.ErrorIs(t, l.Transfer(ctx, a, b, alice, 1), ledger.ErrBalanceOverflow)
}

func TestClose_RefundsRent(t *testing.T) {
	ctx, _, l, tt := setup(t)
	alice, dest := identity.New(), identity.New()
	a := open(t, ctx, l, alice, tt, 3)

	_, err := l.Close(ctx, a, dest, alice)
	require.ErrorIs(t, err, ledger.ErrNonZeroBalance)

	b := open(t, ctx, l, dest, tt, 0)
	require.NoError(t, l.Transfer(ctx, a, b, alice, 3))

	refund, err := l.Close(ctx, a, dest, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), refund)

	bal, err := l.NativeBalance(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), bal)

	_, err = l.Close(ctx, a, dest, alice)
	require.ErrorIs(t, err, ledger.ErrAccountClosed)
	require.ErrorIs(t, l.Transfer(ctx, b, a, dest, 1), ledger.ErrAccountClosed)

	// reopening charges rent again
	reopened, err := l.OpenAccount(ctx, a, tt, alice, dest)
	require.NoError(t, err)
	assert.False(t, reopened.Closed)
	bal, err = l.NativeBalance(ctx, dest)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestTransferNative(t *testing.T) {
	ctx, _, l, _ := setup(t)
	alice, bob := identity.New(), identity.New()
	require.NoError(t, l.CreditNative(ctx, alice, 50))

	require.NoError(t, l.TransferNative(ctx, alice, bob, 20))
	require.ErrorIs(t, l.TransferNative(ctx, alice, bob, 31), ledger.ErrInsufficientFunds)
	require.NoError(t, l.TransferNative(ctx, identity.New(), bob, 0))

	a, err := l.NativeBalance(ctx, alice)
	require.NoError(t, err)
	b, err := l.NativeBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), a)
	assert.Equal(t, uint64(20), b)
}

// lockRecorder records every native row touched, in call order.
type lockRecorder struct {
	repository.NativeRepository
	touched []identity.ID
}

func (r *lockRecorder) UpsertAccount(ctx context.Context, id identity.ID) error {
	r.touched = append(r.touched, id)
	return r.NativeRepository.UpsertAccount(ctx, id)
}

func (r *lockRecorder) GetForUpdate(ctx context.Context, id identity.ID) (uint64, error) {
	r.touched = append(r.touched, id)
	return r.NativeRepository.GetForUpdate(ctx, id)
}

func TestTransferNative_LocksInIdentityOrder(t *testing.T) {
	var lo, hi identity.ID
	lo[0], hi[0] = 0x01, 0xf0

	cases := []struct {
		name     string
		from, to identity.ID
	}{
		{"to sorts first", hi, lo},
		{"to sorts last", lo, hi},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			rec := &lockRecorder{NativeRepository: store.Native()}
			l := ledger.New(store.TokenTypes(), store.TokenAccounts(), rec, rent)

			require.NoError(t, l.CreditNative(ctx, tc.from, 50))
			rec.touched = nil

			require.NoError(t, l.TransferNative(ctx, tc.from, tc.to, 20))
			require.NotEmpty(t, rec.touched)
			for i := 1; i < len(rec.touched); i++ {
				assert.LessOrEqual(t, bytes.Compare(rec.touched[i-1][:], rec.touched[i][:]), 0,
					"row %x touched after %x", rec.touched[i], rec.touched[i-1])
			}

			from, err := l.NativeBalance(ctx, tc.from)
			require.NoError(t, err)
			to, err := l.NativeBalance(ctx, tc.to)
			require.NoError(t, err)
			assert.Equal(t, uint64(30), from)
			assert.Equal(t, uint64(20), to)
		})
	}
}
