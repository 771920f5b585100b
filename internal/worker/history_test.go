package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/kafka"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/repository/memory"
)

type fakeSource struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			m := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return m, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type flakyStore struct {
	repository.PayoutHistoryRepository
	mu    sync.Mutex
	fails int
}

func (f *flakyStore) InsertBatch(ctx context.Context, rows []model.PayoutRow) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("clickhouse unavailable")
	}
	f.mu.Unlock()
	return f.PayoutHistoryRepository.InsertBatch(ctx, rows)
}

func payoutMessage(t *testing.T, offset int64, ev model.Event) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestHistory_WritesPayoutsAndCommits(t *testing.T) {
	store := memory.New()
	faucetID, requester := identity.New(), identity.New()

	wrapped, err := json.Marshal(string(payoutMessage(t, 0, model.Event{ID: "01B", Op: model.OpPayout, FaucetID: faucetID, Actor: requester, Quantity: 2, Amount: 20, At: 100}).Value))
	require.NoError(t, err)

	src := &fakeSource{queue: []kafka.Message{
		payoutMessage(t, 1, model.Event{ID: "01A", Op: model.OpPayout, FaucetID: faucetID, Actor: requester, Quantity: 1, Amount: 10, Fee: 3, At: 50}),
		payoutMessage(t, 2, model.Event{ID: "01X", Op: model.OpDeposit, FaucetID: faucetID, Amount: 99}),
		{Offset: 3, Value: []byte("not json")},
		{Offset: 4, Value: wrapped},
	}}

	h := NewHistory(store.PayoutHistory(), NewBreaker(3, time.Second), nil, src)
	h.BatchSize = 2
	h.BatchWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return len(src.offsets()) == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, src.offsets())

	rows, err := store.PayoutHistory().List(context.Background(), repository.PayoutFilter{Requester: requester})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "01B", rows[0].ID)
	assert.Equal(t, uint64(20), rows[0].Amount)
	assert.Equal(t, "01A", rows[1].ID)
	assert.Equal(t, uint64(3), rows[1].Fee)
}

func TestHistory_RetriesBeforeCommitting(t *testing.T) {
	store := memory.New()
	flaky := &flakyStore{PayoutHistoryRepository: store.PayoutHistory(), fails: 2}

	src := &fakeSource{queue: []kafka.Message{
		payoutMessage(t, 7, model.Event{ID: "01A", Op: model.OpPayout, Actor: identity.New(), Quantity: 1, At: 1}),
	}}

	h := NewHistory(flaky, NewBreaker(5, time.Millisecond), nil, src)
	h.BatchWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return len(src.offsets()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rows, err := store.PayoutHistory().List(context.Background(), repository.PayoutFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
