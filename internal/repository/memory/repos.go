package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

// ---- faucets ----

type faucetRepo struct{ s *Store }

func (r faucetRepo) Insert(ctx context.Context, f model.Faucet) error {
	return r.s.run(ctx, func(st *state) error {
		if _, ok := st.faucets[f.ID]; ok {
			return repository.ErrDuplicate
		}
		now := time.Now().UTC()
		f.CreatedAt, f.UpdatedAt = now, now
		st.faucets[f.ID] = f
		return nil
	})
}

func (r faucetRepo) Get(ctx context.Context, id identity.ID) (*model.Faucet, error) {
	var out *model.Faucet
	err := r.s.run(ctx, func(st *state) error {
		f, ok := st.faucets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &f
		return nil
	})
	return out, err
}

func (r faucetRepo) GetForUpdate(ctx context.Context, id identity.ID) (*model.Faucet, error) {
	return r.Get(ctx, id)
}

func (r faucetRepo) Update(ctx context.Context, f model.Faucet) error {
	return r.s.run(ctx, func(st *state) error {
		cur, ok := st.faucets[f.ID]
		if !ok {
			return repository.ErrNotFound
		}
		f.CreatedAt = cur.CreatedAt
		f.UpdatedAt = time.Now().UTC()
		st.faucets[f.ID] = f
		return nil
	})
}

// ---- throttle ----

type throttleRepo struct{ s *Store }

func (r throttleRepo) Ensure(ctx context.Context, rec model.ThrottleRecord) error {
	return r.s.run(ctx, func(st *state) error {
		if _, ok := st.throttle[rec.ID]; ok {
			return nil
		}
		rec.WindowStart, rec.Count = 0, 0
		rec.UpdatedAt = time.Now().UTC()
		st.throttle[rec.ID] = rec
		return nil
	})
}

func (r throttleRepo) Get(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error) {
	var out *model.ThrottleRecord
	err := r.s.run(ctx, func(st *state) error {
		rec, ok := st.throttle[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r throttleRepo) GetForUpdate(ctx context.Context, id identity.ID) (*model.ThrottleRecord, error) {
	return r.Get(ctx, id)
}

func (r throttleRepo) Save(ctx context.Context, rec model.ThrottleRecord) error {
	return r.s.run(ctx, func(st *state) error {
		cur, ok := st.throttle[rec.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.WindowStart = rec.WindowStart
		cur.Count = rec.Count
		cur.UpdatedAt = time.Now().UTC()
		st.throttle[rec.ID] = cur
		return nil
	})
}

// ---- token types ----

type tokenTypeRepo struct{ s *Store }

func (r tokenTypeRepo) Insert(ctx context.Context, t model.TokenType) error {
	return r.s.run(ctx, func(st *state) error {
		if cur, ok := st.tokenTypes[t.ID]; ok {
			t.CreatedAt = cur.CreatedAt
		} else {
			t.CreatedAt = time.Now().UTC()
		}
		st.tokenTypes[t.ID] = t
		return nil
	})
}

func (r tokenTypeRepo) Get(ctx context.Context, id identity.ID) (*model.TokenType, error) {
	var out *model.TokenType
	err := r.s.run(ctx, func(st *state) error {
		t, ok := st.tokenTypes[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

// ---- token accounts ----

type tokenAccountRepo struct{ s *Store }

func (r tokenAccountRepo) Insert(ctx context.Context, a model.TokenAccount) error {
	return r.s.run(ctx, func(st *state) error {
		if _, ok := st.accounts[a.ID]; ok {
			return repository.ErrDuplicate
		}
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		st.accounts[a.ID] = a
		return nil
	})
}

func (r tokenAccountRepo) Get(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	var out *model.TokenAccount
	err := r.s.run(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r tokenAccountRepo) GetForUpdate(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	return r.Get(ctx, id)
}

func (r tokenAccountRepo) Save(ctx context.Context, a model.TokenAccount) error {
	return r.s.run(ctx, func(st *state) error {
		cur, ok := st.accounts[a.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.Balance = a.Balance
		cur.Owner = a.Owner
		cur.Rent = a.Rent
		cur.Closed = a.Closed
		cur.UpdatedAt = time.Now().UTC()
		st.accounts[a.ID] = cur
		return nil
	})
}

// ---- native balances ----

type nativeRepo struct{ s *Store }

func (r nativeRepo) UpsertAccount(ctx context.Context, id identity.ID) error {
	return r.s.run(ctx, func(st *state) error {
		if _, ok := st.native[id]; !ok {
			st.native[id] = model.NativeAccount{Identity: id, UpdatedAt: time.Now().UTC()}
		}
		return nil
	})
}

func (r nativeRepo) GetForUpdate(ctx context.Context, id identity.ID) (uint64, error) {
	var bal uint64
	err := r.s.run(ctx, func(st *state) error {
		a, ok := st.native[id]
		if !ok {
			return repository.ErrNotFound
		}
		bal = a.Balance
		return nil
	})
	return bal, err
}

func (r nativeRepo) SetBalance(ctx context.Context, id identity.ID, balance uint64) error {
	return r.s.run(ctx, func(st *state) error {
		a, ok := st.native[id]
		if !ok {
			return repository.ErrNotFound
		}
		a.Balance = balance
		a.UpdatedAt = time.Now().UTC()
		st.native[id] = a
		return nil
	})
}

// ---- signers ----

type signersRepo struct{ s *Store }

func (r signersRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Signer, error) {
	var out *model.Signer
	err := r.s.run(ctx, func(st *state) error {
		if sg, ok := st.signers[apiKey]; ok {
			out = &sg
		}
		return nil
	})
	return out, err
}

func (r signersRepo) Upsert(ctx context.Context, sg model.Signer) error {
	return r.s.run(ctx, func(st *state) error {
		now := time.Now().UTC()
		if cur, ok := st.signers[sg.APIKey]; ok {
			sg.CreatedAt = cur.CreatedAt
		} else {
			sg.CreatedAt = now
		}
		sg.UpdatedAt = now
		st.signers[sg.APIKey] = sg
		return nil
	})
}

// ---- journal ----

type journalRepo struct{ s *Store }

func (r journalRepo) GetByIdem(ctx context.Context, idem string) (*model.JournalEntry, error) {
	var out *model.JournalEntry
	err := r.s.run(ctx, func(st *state) error {
		for i := range st.journal {
			e := st.journal[i]
			if e.IdempotencyKey != nil && *e.IdempotencyKey == idem {
				out = &e
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r journalRepo) Insert(ctx context.Context, e model.JournalEntry) error {
	return r.s.run(ctx, func(st *state) error {
		for _, cur := range st.journal {
			if cur.ID == e.ID {
				return repository.ErrDuplicate
			}
			if e.IdempotencyKey != nil && cur.IdempotencyKey != nil && *cur.IdempotencyKey == *e.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
		st.journal = append(st.journal, e)
		return nil
	})
}

// ---- outbox ----

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	return r.s.run(ctx, func(st *state) error {
		st.outboxSeq++
		st.outbox = append(st.outbox, model.OutboxEvent{
			ID:          st.outboxSeq,
			Aggregate:   aggregate,
			AggregateID: aggregateID,
			Topic:       topic,
			Payload:     append([]byte(nil), payload...),
			CreatedAt:   time.Now().UTC(),
		})
		return nil
	})
}

// ---- payout history ----

type payoutsRepo struct{ s *Store }

// InsertBatch replaces rows with the same id, like the ClickHouse ReplacingMergeTree.
func (r payoutsRepo) InsertBatch(ctx context.Context, rows []model.PayoutRow) error {
	return r.s.run(ctx, func(st *state) error {
		for _, rw := range rows {
			st.payouts[rw.ID] = rw
		}
		return nil
	})
}

func (r payoutsRepo) List(ctx context.Context, f repository.PayoutFilter) ([]model.PayoutRow, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var out []model.PayoutRow
	err := r.s.run(ctx, func(st *state) error {
		for _, rw := range st.payouts {
			if !f.Requester.IsZero() && rw.Requester != f.Requester {
				continue
			}
			if !f.FaucetID.IsZero() && rw.FaucetID != f.FaucetID {
				continue
			}
			out = append(out, rw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []model.PayoutRow{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
