package faucet

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

var (
	ErrUnauthorized   = errors.New("caller is not the faucet authority")
	ErrFaucetClosed   = errors.New("the faucet is closed")
	ErrMinQuantity    = errors.New("a minimum quantity of 1 is required")
	ErrMaxQuantity    = errors.New("requested quantity exceeds the remaining quota")
	ErrPayoutLimit    = errors.New("the payout limit for this window has been reached")
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrFaucetNotFound = errors.New("faucet not found")
	ErrInvalidAccount = errors.New("invalid account")
)

// Error codes returned to API clients.
const (
	CodeOK                = "ok"
	CodeUnauthorized      = "unauthorized"
	CodeFaucetClosed      = "faucet_closed"
	CodeMinQuantity       = "min_quantity"
	CodeMaxQuantity       = "max_quantity"
	CodePayoutLimit       = "payout_limit"
	CodeOverflow          = "overflow"
	CodeFaucetNotFound    = "faucet_not_found"
	CodeInvalidAccount    = "invalid_account"
	CodeInsufficientFunds = "insufficient_funds"
	CodeTokenMismatch     = "token_mismatch"
	CodeOwnerMismatch     = "owner_mismatch"
	CodeAccountNotFound   = "account_not_found"
	CodeAccountClosed     = "account_closed"
	CodeAccountExists     = "account_exists"
	CodeUnknownTokenType  = "unknown_token_type"
	CodeNonZeroBalance    = "non_zero_balance"
	CodeInternal          = "internal"
)

type errorKind struct {
	err    error
	code   string
	status int
}

// Checked in order; the first match wins.
var errorKinds = []errorKind{
	{ErrUnauthorized, CodeUnauthorized, http.StatusForbidden},
	{ErrFaucetNotFound, CodeFaucetNotFound, http.StatusNotFound},
	{ErrFaucetClosed, CodeFaucetClosed, http.StatusConflict},
	{ErrMinQuantity, CodeMinQuantity, http.StatusUnprocessableEntity},
	{ErrMaxQuantity, CodeMaxQuantity, http.StatusTooManyRequests},
	{ErrPayoutLimit, CodePayoutLimit, http.StatusTooManyRequests},
	{ErrOverflow, CodeOverflow, http.StatusUnprocessableEntity},
	{ErrInvalidAccount, CodeInvalidAccount, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientFunds, CodeInsufficientFunds, http.StatusPaymentRequired},
	{ledger.ErrTokenMismatch, CodeTokenMismatch, http.StatusUnprocessableEntity},
	{ledger.ErrOwnerMismatch, CodeOwnerMismatch, http.StatusForbidden},
	{ledger.ErrAccountNotFound, CodeAccountNotFound, http.StatusNotFound},
	{ledger.ErrAccountClosed, CodeAccountClosed, http.StatusConflict},
	{ledger.ErrAccountExists, CodeAccountExists, http.StatusConflict},
	{ledger.ErrBalanceOverflow, CodeOverflow, http.StatusUnprocessableEntity},
	{ledger.ErrUnknownTokenType, CodeUnknownTokenType, http.StatusUnprocessableEntity},
	{ledger.ErrNonZeroBalance, CodeNonZeroBalance, http.StatusConflict},
	{repository.ErrNotFound, CodeFaucetNotFound, http.StatusNotFound},
}

// Code maps err to its stable client-facing code. nil maps to CodeOK.
func Code(err error) string {
	code, _ := classify(err)
	return code
}

// Status maps err to an HTTP status.
func Status(err error) int {
	_, status := classify(err)
	return status
}

func classify(err error) (string, int) {
	if err == nil {
		return CodeOK, http.StatusOK
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code, k.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}
