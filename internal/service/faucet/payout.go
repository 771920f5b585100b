package faucet

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/metrics"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

// PayoutRequest asks a faucet to pay Quantity units to Requester.
type PayoutRequest struct {
	FaucetID    identity.ID
	Requester   identity.ID
	Beneficiary *identity.ID // must name the faucet's beneficiary when set
	To          *identity.ID // defaults to the requester's associated token account
	Quantity    uint16
	RequestID   string
}

// Payout charges price*quantity fee-asset units to the requester, pays amount*quantity
// tokens out of custody and records the quantity against the requester's window.
func (s *Service) Payout(ctx context.Context, req PayoutRequest) (*Receipt, error) {
	if req.Quantity < 1 {
		s.observe(model.OpPayout, ErrMinQuantity)
		return nil, ErrMinQuantity
	}

	key := idemKey(model.OpPayout, req.FaucetID, req.Requester, req.RequestID)

	var out *Receipt
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if e, err := s.replayed(ctx, key); err != nil || e != nil {
			if e != nil {
				out = &Receipt{Entry: *e, Idempotent: true}
			}
			return err
		}

		f, err := s.loadFaucet(ctx, req.FaucetID, false)
		if err != nil {
			return err
		}
		if f.Closed() {
			return ErrFaucetClosed
		}

		at := s.now()
		now := at.Unix()

		rec, err := s.lockThrottle(ctx, f.ID, req.Requester)
		if err != nil {
			return err
		}

		remaining := rec.Remaining(now, f.Interval, f.MaxQuantity)
		if remaining <= 0 {
			return ErrPayoutLimit
		}
		if int(req.Quantity) > remaining {
			return fmt.Errorf("%w: requested %d, remaining %d", ErrMaxQuantity, req.Quantity, remaining)
		}

		fee, amount, err := quote(f, req.Quantity)
		if err != nil {
			return err
		}

		if req.Beneficiary != nil && *req.Beneficiary != f.Beneficiary {
			return fmt.Errorf("%w: beneficiary %s does not match faucet", ErrInvalidAccount, *req.Beneficiary)
		}

		custody, err := s.custodyOf(ctx, f)
		if err != nil {
			return err
		}

		var dest *model.TokenAccount
		if req.To == nil {
			dest, err = s.ledger.OpenAssociated(ctx, req.Requester, f.TokenType, req.Requester)
			if err != nil {
				return fmt.Errorf("associated account: %w", err)
			}
		} else {
			dest, err = s.tokenAccountOf(ctx, f, *req.To)
			if err != nil {
				return err
			}
		}

		if err := s.ledger.TransferNative(ctx, req.Requester, f.Beneficiary, fee); err != nil {
			return fmt.Errorf("fee: %w", err)
		}
		if err := s.ledger.Transfer(ctx, custody.ID, dest.ID, custody.ID, amount); err != nil {
			return fmt.Errorf("payout: %w", err)
		}

		rec.Consume(now, f.Interval, req.Quantity)
		if err := s.throttle.Save(ctx, *rec); err != nil {
			return fmt.Errorf("save throttle: %w", err)
		}

		e := s.newEntry(model.OpPayout, f.ID, req.Requester, key, at)
		e.Account = dest.ID
		e.Quantity = req.Quantity
		e.Amount = amount
		e.Fee = fee
		ev := model.Event{
			TokenType:   f.TokenType,
			Beneficiary: f.Beneficiary,
			WindowStart: rec.WindowStart,
			WindowCount: rec.Count,
		}
		if err := s.record(ctx, e, ev); err != nil {
			return err
		}
		out = &Receipt{Entry: e, Throttle: rec}
		return nil
	})
	if err != nil {
		out, err = s.recoverDuplicate(ctx, key, err)
	}
	s.observe(model.OpPayout, err)
	if err != nil {
		return nil, err
	}
	if out.Idempotent {
		return out, nil
	}

	metrics.PayoutQuantity.Add(float64(out.Entry.Quantity))
	metrics.TokensPaidOut.Add(float64(out.Entry.Amount))
	metrics.FeesCollected.Add(float64(out.Entry.Fee))

	s.log.Info("payout",
		zap.String("faucet", req.FaucetID.String()),
		zap.String("requester", req.Requester.String()),
		zap.String("account", out.Entry.Account.String()),
		zap.Uint16("quantity", out.Entry.Quantity),
		zap.Uint64("amount", out.Entry.Amount),
		zap.Uint64("fee", out.Entry.Fee),
	)
	return out, nil
}

// quote computes the fee and the payout amount for quantity. Both are computed before
// any balance moves.
func quote(f *model.Faucet, quantity uint16) (fee, amount uint64, err error) {
	var hi uint64
	hi, fee = bits.Mul64(f.Price, uint64(quantity))
	if hi != 0 {
		return 0, 0, fmt.Errorf("%w: fee %d * %d", ErrOverflow, f.Price, quantity)
	}
	hi, amount = bits.Mul64(f.Amount, uint64(quantity))
	if hi != 0 {
		return 0, 0, fmt.Errorf("%w: amount %d * %d", ErrOverflow, f.Amount, quantity)
	}
	return fee, amount, nil
}

func (s *Service) throttleKey(faucetID, requester identity.ID) (identity.ID, identity.ID, error) {
	scoped := faucetID
	if s.scope == model.ThrottleScopeGlobal {
		scoped = identity.Zero
	}
	key, err := identity.Throttle(scoped, requester)
	if err != nil {
		return identity.Zero, identity.Zero, fmt.Errorf("derive throttle key: %w", err)
	}
	return key, scoped, nil
}

// lockThrottle creates the requester's record on first use and locks it.
func (s *Service) lockThrottle(ctx context.Context, faucetID, requester identity.ID) (*model.ThrottleRecord, error) {
	key, scoped, err := s.throttleKey(faucetID, requester)
	if err != nil {
		return nil, err
	}
	if err := s.throttle.Ensure(ctx, model.ThrottleRecord{ID: key, FaucetID: scoped, Requester: requester}); err != nil {
		return nil, fmt.Errorf("ensure throttle: %w", err)
	}
	rec, err := s.throttle.GetForUpdate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock throttle: %w", err)
	}
	return rec, nil
}

// ThrottleStatus reports what a requester may still take from a faucet.
type ThrottleStatus struct {
	FaucetID    identity.ID         `json:"faucet_id"`
	Requester   identity.ID         `json:"requester"`
	Scope       model.ThrottleScope `json:"scope"`
	WindowStart int64               `json:"window_start"`
	Count       uint16              `json:"count"`
	Remaining   uint16              `json:"remaining"`
	ResetsAt    int64               `json:"resets_at,omitempty"`
	Closed      bool                `json:"closed"`
}

// ThrottleStatus is read-only: it never creates a record.
func (s *Service) ThrottleStatus(ctx context.Context, id, requester identity.ID) (*ThrottleStatus, error) {
	f, err := s.loadFaucet(ctx, id, false)
	if err != nil {
		return nil, err
	}
	key, _, err := s.throttleKey(f.ID, requester)
	if err != nil {
		return nil, err
	}

	rec, err := s.throttle.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		rec = &model.ThrottleRecord{ID: key, Requester: requester}
	} else if err != nil {
		return nil, fmt.Errorf("load throttle: %w", err)
	}

	now := s.now().Unix()
	st := &ThrottleStatus{
		FaucetID:    f.ID,
		Requester:   requester,
		Scope:       s.scope,
		WindowStart: rec.WindowStart,
		Count:       rec.EffectiveCount(now, f.Interval),
		Closed:      f.Closed(),
	}
	if r := rec.Remaining(now, f.Interval, f.MaxQuantity); r > 0 {
		st.Remaining = uint16(r)
	}
	if !rec.Expired(now, f.Interval) {
		st.ResetsAt = rec.ResetsAt(f.Interval)
	}
	return st, nil
}
