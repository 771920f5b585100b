// Package memory keeps every repository in process memory. Transactions are serialized
// under one mutex; a failing transaction restores the snapshot taken when it began.
package memory

import (
	"context"
	"sync"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

type state struct {
	faucets    map[identity.ID]model.Faucet
	throttle   map[identity.ID]model.ThrottleRecord
	tokenTypes map[identity.ID]model.TokenType
	accounts   map[identity.ID]model.TokenAccount
	native     map[identity.ID]model.NativeAccount
	signers    map[string]model.Signer
	journal    []model.JournalEntry
	outbox     []model.OutboxEvent
	payouts    map[string]model.PayoutRow
	outboxSeq  int64
}

func newState() *state {
	return &state{
		faucets:    map[identity.ID]model.Faucet{},
		throttle:   map[identity.ID]model.ThrottleRecord{},
		tokenTypes: map[identity.ID]model.TokenType{},
		accounts:   map[identity.ID]model.TokenAccount{},
		native:     map[identity.ID]model.NativeAccount{},
		signers:    map[string]model.Signer{},
		payouts:    map[string]model.PayoutRow{},
	}
}

func (st *state) clone() *state {
	c := &state{
		faucets:    make(map[identity.ID]model.Faucet, len(st.faucets)),
		throttle:   make(map[identity.ID]model.ThrottleRecord, len(st.throttle)),
		tokenTypes: make(map[identity.ID]model.TokenType, len(st.tokenTypes)),
		accounts:   make(map[identity.ID]model.TokenAccount, len(st.accounts)),
		native:     make(map[identity.ID]model.NativeAccount, len(st.native)),
		signers:    make(map[string]model.Signer, len(st.signers)),
		journal:    append([]model.JournalEntry(nil), st.journal...),
		outbox:     append([]model.OutboxEvent(nil), st.outbox...),
		payouts:    make(map[string]model.PayoutRow, len(st.payouts)),
		outboxSeq:  st.outboxSeq,
	}
	for k, v := range st.faucets {
		c.faucets[k] = v
	}
	for k, v := range st.throttle {
		c.throttle[k] = v
	}
	for k, v := range st.tokenTypes {
		c.tokenTypes[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.native {
		c.native[k] = v
	}
	for k, v := range st.signers {
		c.signers[k] = v
	}
	for k, v := range st.payouts {
		c.payouts[k] = v
	}
	return c
}

// Store is an in-memory implementation of every repository interface.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ repository.Transactor = (*Store)(nil)

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// WithinTx holds the store lock for the whole of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// run applies fn inside the transaction carried by ctx, or as its own statement.
func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Faucets() repository.FaucetRepository             { return faucetRepo{s} }
func (s *Store) Throttle() repository.ThrottleRepository           { return throttleRepo{s} }
func (s *Store) TokenTypes() repository.TokenTypeRepository        { return tokenTypeRepo{s} }
func (s *Store) TokenAccounts() repository.TokenAccountRepository  { return tokenAccountRepo{s} }
func (s *Store) Native() repository.NativeRepository               { return nativeRepo{s} }
func (s *Store) Signers() repository.SignersRepository             { return signersRepo{s} }
func (s *Store) Journal() repository.JournalRepository             { return journalRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository               { return outboxRepo{s} }
func (s *Store) PayoutHistory() repository.PayoutHistoryRepository { return payoutsRepo{s} }

// OutboxEvents returns a copy of every outbox row written so far.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

// JournalEntries returns a copy of the journal in insertion order.
func (s *Store) JournalEntries() []model.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.JournalEntry(nil), s.st.journal...)
}
