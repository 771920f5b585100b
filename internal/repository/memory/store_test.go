package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

func TestWithinTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := identity.New()

	require.NoError(t, s.Faucets().Insert(ctx, model.Faucet{ID: id, MaxQuantity: 1}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.Faucets().GetForUpdate(ctx, id)
		require.NoError(t, err)
		f.MaxQuantity = 9
		require.NoError(t, s.Faucets().Update(ctx, *f))
		require.NoError(t, s.Outbox().Insert(ctx, "faucet", id.String(), model.TopicFaucetEvents, []byte("{}")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	f, err := s.Faucets().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), f.MaxQuantity)
	assert.Empty(t, s.OutboxEvents())
}

func TestWithinTx_Nested(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			return s.Native().UpsertAccount(ctx, identity.New())
		})
	})
	require.NoError(t, err)
}

func TestJournal_Idempotency(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := "payout-x"

	require.NoError(t, s.Journal().Insert(ctx, model.JournalEntry{ID: "01", IdempotencyKey: &key}))
	err := s.Journal().Insert(ctx, model.JournalEntry{ID: "02", IdempotencyKey: &key})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	e, err := s.Journal().GetByIdem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "01", e.ID)

	_, err = s.Journal().GetByIdem(ctx, "other")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestThrottle_EnsureKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := identity.New()

	require.NoError(t, s.Throttle().Ensure(ctx, model.ThrottleRecord{ID: id}))
	require.NoError(t, s.Throttle().Save(ctx, model.ThrottleRecord{ID: id, WindowStart: 5, Count: 2}))
	require.NoError(t, s.Throttle().Ensure(ctx, model.ThrottleRecord{ID: id}))

	r, err := s.Throttle().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.WindowStart)
	assert.Equal(t, uint16(2), r.Count)
}
