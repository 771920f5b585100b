package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

// NativeBalance returns an identity's fee-asset balance; unknown identities hold zero.
func (l *Ledger) NativeBalance(ctx context.Context, id identity.ID) (uint64, error) {
	bal, err := l.native.GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

// TransferNative moves fee-asset units between identities, locking both in identity order.
func (l *Ledger) TransferNative(ctx context.Context, from, to identity.ID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		bal, err := l.NativeBalance(ctx, from)
		if err != nil {
			return err
		}
		if bal < amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, bal, amount)
		}
		return nil
	}

	// rows are locked in identity order; the destination row is created in its slot
	first, second := from, to
	if bytes.Compare(to[:], from[:]) < 0 {
		first, second = to, from
	}
	balFirst, err := l.lockNative(ctx, first, first == to)
	if err != nil {
		return err
	}
	balSecond, err := l.lockNative(ctx, second, second == to)
	if err != nil {
		return err
	}
	src, dst := balFirst, balSecond
	if first != from {
		src, dst = balSecond, balFirst
	}

	if src < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src, amount)
	}
	sum, carry := bits.Add64(dst, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}

	if err := l.native.SetBalance(ctx, from, src-amount); err != nil {
		return err
	}
	return l.native.SetBalance(ctx, to, sum)
}

// lockNative locks id's balance row. With create set, a missing row is inserted first;
// otherwise a missing row reads as zero.
func (l *Ledger) lockNative(ctx context.Context, id identity.ID, create bool) (uint64, error) {
	bal, err := l.native.GetForUpdate(ctx, id)
	if !errors.Is(err, repository.ErrNotFound) {
		return bal, err
	}
	if !create {
		return 0, nil
	}
	if err := l.native.UpsertAccount(ctx, id); err != nil {
		return 0, err
	}
	return l.native.GetForUpdate(ctx, id)
}

// CreditNative adds fee-asset units to an identity, e.g. when seeding or refunding rent.
func (l *Ledger) CreditNative(ctx context.Context, id identity.ID, amount uint64) error {
	return l.creditNative(ctx, id, amount)
}

func (l *Ledger) creditNative(ctx context.Context, id identity.ID, amount uint64) error {
	if err := l.native.UpsertAccount(ctx, id); err != nil {
		return err
	}
	bal, err := l.native.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(bal, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, id)
	}
	return l.native.SetBalance(ctx, id, sum)
}

func (l *Ledger) debitNative(ctx context.Context, id identity.ID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	bal, err := l.NativeBalance(ctx, id)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, id, bal, amount)
	}
	return l.native.SetBalance(ctx, id, bal-amount)
}
