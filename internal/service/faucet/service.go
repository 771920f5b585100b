// Package faucet implements the faucet registry, the custody vault and the payout engine.
// Every exported operation runs as one unit of work: journal row, outbox event, ledger
// movements and throttle update commit together or not at all.
package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/metrics"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/util"
)

const aggregateFaucet = "faucet"

type Service struct {
	tx       repository.Transactor
	faucets  repository.FaucetRepository
	throttle repository.ThrottleRepository
	journal  repository.JournalRepository
	outbox   repository.OutboxRepository
	ledger   *ledger.Ledger

	scope model.ThrottleScope
	now   func() time.Time
	log   *zap.Logger
}

type Option func(*Service)

// WithClock overrides the clock payouts read "now" from.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithThrottleScope selects whether quotas are tracked per faucet or across all faucets.
func WithThrottleScope(scope model.ThrottleScope) Option {
	return func(s *Service) { s.scope = scope }
}

// New constructs the faucet service.
func New(
	tx repository.Transactor,
	faucetsRepo repository.FaucetRepository,
	throttleRepo repository.ThrottleRepository,
	journalRepo repository.JournalRepository,
	outboxRepo repository.OutboxRepository,
	l *ledger.Ledger,
	opts ...Option,
) *Service {
	s := &Service{
		tx:       tx,
		faucets:  faucetsRepo,
		throttle: throttleRepo,
		journal:  journalRepo,
		outbox:   outboxRepo,
		ledger:   l,
		scope:    model.ThrottleScopeFaucet,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Receipt describes a committed (or replayed) operation.
type Receipt struct {
	Entry      model.JournalEntry    `json:"entry"`
	Idempotent bool                  `json:"idempotent"`
	Refund     uint64                `json:"refund,omitempty"`
	Throttle   *model.ThrottleRecord `json:"throttle,omitempty"`
}

// idemKey scopes a client request id to one operation on one faucet by one actor.
func idemKey(op model.Operation, faucetID, actor identity.ID, requestID string) *string {
	if requestID == "" {
		return nil
	}
	k := fmt.Sprintf("%s-%s-%s-%s", op, faucetID, actor, requestID)
	return &k
}

// replayed returns the entry already recorded under key, if any.
func (s *Service) replayed(ctx context.Context, key *string) (*model.JournalEntry, error) {
	if key == nil {
		return nil, nil
	}
	e, err := s.journal.GetByIdem(ctx, *key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal lookup: %w", err)
	}
	return e, nil
}

// recoverDuplicate turns a lost idempotency race into a replay of the winner's entry.
func (s *Service) recoverDuplicate(ctx context.Context, key *string, err error) (*Receipt, error) {
	if key == nil || !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}
	e, lookupErr := s.replayed(ctx, key)
	if lookupErr != nil || e == nil {
		return nil, err
	}
	return &Receipt{Entry: *e, Idempotent: true}, nil
}

// record writes the journal entry and its outbox event inside the current unit of work.
func (s *Service) record(ctx context.Context, e model.JournalEntry, ev model.Event) error {
	if err := s.journal.Insert(ctx, e); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}

	ev.ID = e.ID
	ev.Op = e.Op
	ev.FaucetID = e.FaucetID
	ev.Actor = e.Actor
	ev.Account = e.Account
	ev.Quantity = e.Quantity
	ev.Amount = e.Amount
	ev.Fee = e.Fee
	ev.At = e.CreatedAt.Unix()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.outbox.Insert(ctx, aggregateFaucet, e.FaucetID.String(), model.TopicFor(e.Op), payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (s *Service) newEntry(op model.Operation, faucetID, actor identity.ID, key *string, at time.Time) model.JournalEntry {
	at = at.UTC().Truncate(time.Second)
	return model.JournalEntry{
		ID:             util.NewIDAt(at),
		FaucetID:       faucetID,
		Op:             op,
		Actor:          actor,
		IdempotencyKey: key,
		CreatedAt:      at,
	}
}

func (s *Service) loadFaucet(ctx context.Context, id identity.ID, lock bool) (*model.Faucet, error) {
	var (
		f   *model.Faucet
		err error
	)
	if lock {
		f, err = s.faucets.GetForUpdate(ctx, id)
	} else {
		f, err = s.faucets.Get(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFaucetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load faucet: %w", err)
	}
	return f, nil
}

// custodyOf returns the faucet's custody account, requiring it to hold the faucet's token.
func (s *Service) custodyOf(ctx context.Context, f *model.Faucet) (*model.TokenAccount, error) {
	addr, err := f.Custody()
	if err != nil {
		return nil, fmt.Errorf("%w: custody: %v", ErrInvalidAccount, err)
	}
	acc, err := s.ledger.Account(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc.TokenType != f.TokenType {
		return nil, fmt.Errorf("%w: custody %s holds %s, faucet pays %s", ledger.ErrTokenMismatch, acc.ID, acc.TokenType, f.TokenType)
	}
	return acc, nil
}

// tokenAccountOf returns account id, requiring it to hold the faucet's token.
func (s *Service) tokenAccountOf(ctx context.Context, f *model.Faucet, id identity.ID) (*model.TokenAccount, error) {
	acc, err := s.ledger.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.TokenType != f.TokenType {
		return nil, fmt.Errorf("%w: %s holds %s, faucet pays %s", ledger.ErrTokenMismatch, acc.ID, acc.TokenType, f.TokenType)
	}
	return acc, nil
}

func (s *Service) observe(op model.Operation, err error) {
	metrics.OperationsTotal.WithLabelValues(op.String(), Code(err)).Inc()
	if err == nil {
		return
	}
	if Code(err) == CodeInternal {
		s.log.Error("faucet operation failed", zap.String("op", op.String()), zap.Error(err))
		return
	}
	s.log.Debug("faucet operation rejected", zap.String("op", op.String()), zap.String("code", Code(err)), zap.Error(err))
}
