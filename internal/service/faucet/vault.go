package faucet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
)

// Deposit moves amount tokens from the caller's account into custody. Anyone may fund a
// faucet. A closed custody account is reopened with rent charged to the depositor.
func (s *Service) Deposit(ctx context.Context, caller, id, from identity.ID, amount uint64, requestID string) (*Receipt, error) {
	key := idemKey(model.OpDeposit, id, caller, requestID)

	var out *Receipt
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if e, err := s.replayed(ctx, key); err != nil || e != nil {
			if e != nil {
				out = &Receipt{Entry: *e, Idempotent: true}
			}
			return err
		}

		f, err := s.loadFaucet(ctx, id, false)
		if err != nil {
			return err
		}

		custodyAddr, err := f.Custody()
		if err != nil {
			return fmt.Errorf("%w: custody: %v", ErrInvalidAccount, err)
		}
		if err := s.reopenCustody(ctx, f, custodyAddr, caller); err != nil {
			return err
		}
		if _, err := s.custodyOf(ctx, f); err != nil {
			return err
		}
		if _, err := s.tokenAccountOf(ctx, f, from); err != nil {
			return err
		}

		if err := s.ledger.Transfer(ctx, from, custodyAddr, caller, amount); err != nil {
			return err
		}

		e := s.newEntry(model.OpDeposit, f.ID, caller, key, s.now())
		e.Account = from
		e.Amount = amount
		if err := s.record(ctx, e, model.Event{TokenType: f.TokenType}); err != nil {
			return err
		}
		out = &Receipt{Entry: e}
		return nil
	})
	if err != nil {
		out, err = s.recoverDuplicate(ctx, key, err)
	}
	s.observe(model.OpDeposit, err)
	if err != nil {
		return nil, err
	}

	if !out.Idempotent {
		s.log.Info("custody deposit",
			zap.String("faucet", id.String()),
			zap.String("from", from.String()),
			zap.Uint64("amount", amount),
		)
	}
	return out, nil
}

// reopenCustody reopens a closed custody account, charging rent to payer.
func (s *Service) reopenCustody(ctx context.Context, f *model.Faucet, addr, payer identity.ID) error {
	acc, err := s.ledger.Account(ctx, addr)
	if err != nil {
		return err
	}
	if !acc.Closed {
		return nil
	}
	if _, err := s.ledger.OpenAccount(ctx, addr, f.TokenType, addr, payer); err != nil {
		return fmt.Errorf("reopen custody: %w", err)
	}
	return nil
}

// Withdraw moves amount tokens out of custody into to. Only the authority may withdraw.
func (s *Service) Withdraw(ctx context.Context, caller, id, to identity.ID, amount uint64, requestID string) (*Receipt, error) {
	key := idemKey(model.OpWithdraw, id, caller, requestID)

	var out *Receipt
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if e, err := s.replayed(ctx, key); err != nil || e != nil {
			if e != nil {
				out = &Receipt{Entry: *e, Idempotent: true}
			}
			return err
		}

		f, err := s.loadFaucet(ctx, id, true)
		if err != nil {
			return err
		}
		if f.Authority != caller {
			return ErrUnauthorized
		}

		custody, err := s.custodyOf(ctx, f)
		if err != nil {
			return err
		}
		if _, err := s.tokenAccountOf(ctx, f, to); err != nil {
			return err
		}

		if err := s.ledger.Transfer(ctx, custody.ID, to, custody.ID, amount); err != nil {
			return err
		}

		e := s.newEntry(model.OpWithdraw, f.ID, caller, key, s.now())
		e.Account = to
		e.Amount = amount
		if err := s.record(ctx, e, model.Event{TokenType: f.TokenType}); err != nil {
			return err
		}
		out = &Receipt{Entry: e}
		return nil
	})
	if err != nil {
		out, err = s.recoverDuplicate(ctx, key, err)
	}
	s.observe(model.OpWithdraw, err)
	if err != nil {
		return nil, err
	}

	if !out.Idempotent {
		s.log.Info("custody withdraw",
			zap.String("faucet", id.String()),
			zap.String("to", to.String()),
			zap.Uint64("amount", amount),
		)
	}
	return out, nil
}

// Close drains custody into an account owned by the authority and closes custody,
// refunding its rent to the authority. With to nil the authority's associated account is
// used, created on demand at the caller's expense. The faucet record itself remains.
func (s *Service) Close(ctx context.Context, caller, id identity.ID, to *identity.ID) (*Receipt, error) {
	var out *Receipt
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.loadFaucet(ctx, id, true)
		if err != nil {
			return err
		}
		if f.Authority != caller {
			return ErrUnauthorized
		}

		custody, err := s.custodyOf(ctx, f)
		if err != nil {
			return err
		}

		var dest *model.TokenAccount
		if to == nil {
			dest, err = s.ledger.OpenAssociated(ctx, f.Authority, f.TokenType, caller)
			if err != nil {
				return fmt.Errorf("associated account: %w", err)
			}
		} else {
			dest, err = s.tokenAccountOf(ctx, f, *to)
			if err != nil {
				return err
			}
			if dest.Owner != f.Authority {
				return fmt.Errorf("%w: %s is not owned by the authority", ErrInvalidAccount, dest.ID)
			}
		}

		drained := custody.Balance
		if err := s.ledger.Transfer(ctx, custody.ID, dest.ID, custody.ID, drained); err != nil {
			return err
		}
		refund, err := s.ledger.Close(ctx, custody.ID, f.Authority, custody.ID)
		if err != nil {
			return err
		}

		e := s.newEntry(model.OpClose, f.ID, caller, nil, s.now())
		e.Account = dest.ID
		e.Amount = drained
		if err := s.record(ctx, e, model.Event{TokenType: f.TokenType}); err != nil {
			return err
		}
		out = &Receipt{Entry: e, Refund: refund}
		return nil
	})
	s.observe(model.OpClose, err)
	if err != nil {
		return nil, err
	}

	s.log.Info("custody closed",
		zap.String("faucet", id.String()),
		zap.String("to", out.Entry.Account.String()),
		zap.Uint64("drained", out.Entry.Amount),
		zap.Uint64("refund", out.Refund),
	)
	return out, nil
}
