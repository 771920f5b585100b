package faucet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/model"
)

// View is a faucet together with the state of its custody account.
type View struct {
	model.Faucet
	CustodyAccount identity.ID `json:"custody_account"`
	CustodyBalance uint64      `json:"custody_balance"`
	CustodyClosed  bool        `json:"custody_closed"`
}

// Create deploys a closed faucet for tokenType owned by creator, opening its custody
// account with rent paid from creator's native balance.
func (s *Service) Create(ctx context.Context, creator, tokenType identity.ID) (*model.Faucet, error) {
	if creator.IsZero() {
		s.observe(model.OpCreate, ErrUnauthorized)
		return nil, ErrUnauthorized
	}

	var out *model.Faucet
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.TokenType(ctx, tokenType); err != nil {
			return err
		}

		id := identity.New()
		custody, bump, err := identity.Custody(id)
		if err != nil {
			return fmt.Errorf("derive custody: %w", err)
		}

		f := model.Faucet{
			ID:          id,
			Authority:   creator,
			Beneficiary: creator,
			TokenType:   tokenType,
			CustodyBump: bump,
		}
		if err := s.faucets.Insert(ctx, f); err != nil {
			return fmt.Errorf("insert faucet: %w", err)
		}
		if _, err := s.ledger.OpenAccount(ctx, custody, tokenType, custody, creator); err != nil {
			return fmt.Errorf("open custody: %w", err)
		}

		e := s.newEntry(model.OpCreate, id, creator, nil, s.now())
		e.Account = custody
		if err := s.record(ctx, e, model.Event{TokenType: tokenType, Beneficiary: creator}); err != nil {
			return err
		}

		out, err = s.faucets.Get(ctx, id)
		return err
	})
	s.observe(model.OpCreate, err)
	if err != nil {
		return nil, err
	}

	s.log.Info("faucet created",
		zap.String("faucet", out.ID.String()),
		zap.String("authority", creator.String()),
		zap.String("token_type", tokenType.String()),
	)
	return out, nil
}

// Update applies a sparse patch. Only the current authority may update, and it may hand
// authority to someone else.
func (s *Service) Update(ctx context.Context, caller, id identity.ID, patch model.FaucetPatch) (*model.Faucet, error) {
	var out *model.Faucet
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.loadFaucet(ctx, id, true)
		if err != nil {
			return err
		}
		if f.Authority != caller {
			return ErrUnauthorized
		}
		if patch.Authority != nil && patch.Authority.IsZero() {
			return fmt.Errorf("%w: authority must not be empty", ErrInvalidAccount)
		}

		if patch.TokenType != nil {
			if _, err := s.ledger.TokenType(ctx, *patch.TokenType); err != nil {
				return err
			}
		}

		patch.Apply(f)
		if err := s.faucets.Update(ctx, *f); err != nil {
			return fmt.Errorf("update faucet: %w", err)
		}

		e := s.newEntry(model.OpUpdate, f.ID, caller, nil, s.now())
		if err := s.record(ctx, e, model.Event{TokenType: f.TokenType, Beneficiary: f.Beneficiary}); err != nil {
			return err
		}

		out, err = s.faucets.Get(ctx, id)
		return err
	})
	s.observe(model.OpUpdate, err)
	if err != nil {
		return nil, err
	}

	s.log.Info("faucet updated",
		zap.String("faucet", out.ID.String()),
		zap.Uint64("price", out.Price),
		zap.Uint64("amount", out.Amount),
		zap.Int64("interval", out.Interval),
		zap.Uint16("max_quantity", out.MaxQuantity),
	)
	return out, nil
}

// Get returns the faucet and its custody state. It needs no authority.
func (s *Service) Get(ctx context.Context, id identity.ID) (*View, error) {
	f, err := s.loadFaucet(ctx, id, false)
	if err != nil {
		return nil, err
	}

	v := &View{Faucet: *f}
	addr, err := f.Custody()
	if err != nil {
		// a patched bump may no longer derive an address; report the faucet anyway
		return v, nil
	}
	v.CustodyAccount = addr

	acc, err := s.ledger.Account(ctx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		v.CustodyClosed = true
	case err != nil:
		return nil, err
	default:
		v.CustodyBalance = acc.Balance
		v.CustodyClosed = acc.Closed
	}
	return v, nil
}
