// Package ledger implements the fungible-token and fee-asset primitives the faucet
// builds on. Every method must run inside repository.Transactor.WithinTx: the ledger
// locks rows but never commits.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTokenMismatch     = errors.New("token type mismatch")
	ErrOwnerMismatch     = errors.New("account owner does not match authority")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountClosed     = errors.New("account closed")
	ErrAccountExists     = errors.New("account already exists")
	ErrNonZeroBalance    = errors.New("account balance is not zero")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrUnknownTokenType  = errors.New("unknown token type")
)

type Ledger struct {
	types    repository.TokenTypeRepository
	accounts repository.TokenAccountRepository
	native   repository.NativeRepository
	rent     uint64
}

// New builds a ledger charging rent fee-asset units for every token account it opens.
func New(
	types repository.TokenTypeRepository,
	accounts repository.TokenAccountRepository,
	native repository.NativeRepository,
	rent uint64,
) *Ledger {
	return &Ledger{types: types, accounts: accounts, native: native, rent: rent}
}

func (l *Ledger) TokenType(ctx context.Context, id identity.ID) (*model.TokenType, error) {
	t, err := l.types.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTokenType, id)
	}
	return t, err
}

func (l *Ledger) RegisterTokenType(ctx context.Context, t model.TokenType) error {
	return l.types.Insert(ctx, t)
}

// Account reads a token account without locking it.
func (l *Ledger) Account(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	a, err := l.accounts.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return a, err
}

func (l *Ledger) lockAccount(ctx context.Context, id identity.ID) (*model.TokenAccount, error) {
	a, err := l.accounts.GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// OpenAccount creates (or reopens a closed) token account at id, charging rent to payer.
func (l *Ledger) OpenAccount(ctx context.Context, id, tokenType, owner, payer identity.ID) (*model.TokenAccount, error) {
	if _, err := l.TokenType(ctx, tokenType); err != nil {
		return nil, err
	}

	existing, err := l.accounts.GetForUpdate(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil && !existing.Closed {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	// reopened accounts keep their original token type
	if existing != nil && existing.TokenType != tokenType {
		return nil, fmt.Errorf("%w: %s holds %s", ErrTokenMismatch, id, existing.TokenType)
	}

	if err := l.debitNative(ctx, payer, l.rent); err != nil {
		return nil, fmt.Errorf("rent from %s: %w", payer, err)
	}

	acc := model.TokenAccount{
		ID:        id,
		TokenType: tokenType,
		Owner:     owner,
		Rent:      l.rent,
	}
	if existing != nil {
		if err := l.accounts.Save(ctx, acc); err != nil {
			return nil, err
		}
		acc.CreatedAt = existing.CreatedAt
		return &acc, nil
	}
	if err := l.accounts.Insert(ctx, acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// OpenAssociated returns owner's associated account for tokenType, creating it on demand
// with rent paid by payer.
func (l *Ledger) OpenAssociated(ctx context.Context, owner, tokenType, payer identity.ID) (*model.TokenAccount, error) {
	id, err := identity.Associated(owner, tokenType)
	if err != nil {
		return nil, err
	}
	acc, err := l.accounts.Get(ctx, id)
	if err == nil && !acc.Closed {
		return acc, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return l.OpenAccount(ctx, id, tokenType, owner, payer)
}

// Transfer moves amount of tokens from one account to another. authority must own from.
// Both rows are locked in identity order.
func (l *Ledger) Transfer(ctx context.Context, from, to, authority identity.ID, amount uint64) error {
	if from == to {
		src, err := l.lockAccount(ctx, from)
		if err != nil {
			return err
		}
		if err := checkSource(src, authority, amount); err != nil {
			return err
		}
		return nil
	}

	first, second := from, to
	if bytes.Compare(to[:], from[:]) < 0 {
		first, second = to, from
	}
	a, err := l.lockAccount(ctx, first)
	if err != nil {
		return err
	}
	b, err := l.lockAccount(ctx, second)
	if err != nil {
		return err
	}
	src, dst := a, b
	if first != from {
		src, dst = b, a
	}

	if err := checkSource(src, authority, amount); err != nil {
		return err
	}
	if dst.Closed {
		return fmt.Errorf("%w: %s", ErrAccountClosed, dst.ID)
	}
	if src.TokenType != dst.TokenType {
		return fmt.Errorf("%w: %s holds %s, %s holds %s", ErrTokenMismatch, src.ID, src.TokenType, dst.ID, dst.TokenType)
	}

	sum, carry := bits.Add64(dst.Balance, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, dst.ID)
	}
	src.Balance -= amount
	dst.Balance = sum

	if err := l.accounts.Save(ctx, *src); err != nil {
		return err
	}
	return l.accounts.Save(ctx, *dst)
}

func checkSource(src *model.TokenAccount, authority identity.ID, amount uint64) error {
	if src.Closed {
		return fmt.Errorf("%w: %s", ErrAccountClosed, src.ID)
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, src.ID)
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, src.ID, src.Balance, amount)
	}
	return nil
}

// Close marks an empty account closed and refunds its rent to dest's native balance.
func (l *Ledger) Close(ctx context.Context, account, dest, authority identity.ID) (uint64, error) {
	acc, err := l.lockAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	if acc.Closed {
		return 0, fmt.Errorf("%w: %s", ErrAccountClosed, acc.ID)
	}
	if acc.Owner != authority {
		return 0, fmt.Errorf("%w: %s", ErrOwnerMismatch, acc.ID)
	}
	if acc.Balance != 0 {
		return 0, fmt.Errorf("%w: %s has %d", ErrNonZeroBalance, acc.ID, acc.Balance)
	}

	refund := acc.Rent
	acc.Rent = 0
	acc.Closed = true
	if err := l.accounts.Save(ctx, *acc); err != nil {
		return 0, err
	}
	if err := l.creditNative(ctx, dest, refund); err != nil {
		return 0, err
	}
	return refund, nil
}

// Mint credits new tokens to an open account. Only seeding uses it.
func (l *Ledger) Mint(ctx context.Context, account identity.ID, amount uint64) error {
	acc, err := l.lockAccount(ctx, account)
	if err != nil {
		return err
	}
	if acc.Closed {
		return fmt.Errorf("%w: %s", ErrAccountClosed, acc.ID)
	}
	sum, carry := bits.Add64(acc.Balance, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, acc.ID)
	}
	acc.Balance = sum
	return l.accounts.Save(ctx, *acc)
}
