package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/http/middleware"
	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/service/faucet"
)

type createReq struct {
	TokenType identity.ID `json:"token_type" validate:"required"`
}

type updateReq struct {
	Price       *uint64      `json:"price"`
	Amount      *uint64      `json:"amount"`
	Interval    *int64       `json:"interval"     validate:"omitempty,gte=0"`
	MaxQuantity *uint16      `json:"max_quantity"`
	Authority   *identity.ID `json:"authority"`
	Beneficiary *identity.ID `json:"beneficiary"`
	TokenType   *identity.ID `json:"token_type"`
	CustodyBump *uint8       `json:"custody_bump"`
}

func (r updateReq) patch() model.FaucetPatch {
	return model.FaucetPatch{
		Price:       r.Price,
		Amount:      r.Amount,
		Interval:    r.Interval,
		MaxQuantity: r.MaxQuantity,
		Authority:   r.Authority,
		Beneficiary: r.Beneficiary,
		TokenType:   r.TokenType,
		CustodyBump: r.CustodyBump,
	}
}

type depositReq struct {
	From      identity.ID `json:"from"       validate:"required"`
	Amount    uint64      `json:"amount"     validate:"gt=0"`
	RequestID string      `json:"request_id" validate:"omitempty,max=64,printascii"`
}

type withdrawReq struct {
	To        identity.ID `json:"to"         validate:"required"`
	Amount    uint64      `json:"amount"     validate:"gt=0"`
	RequestID string      `json:"request_id" validate:"omitempty,max=64,printascii"`
}

type payoutReq struct {
	Quantity    uint16       `json:"quantity"`
	To          *identity.ID `json:"to"`
	Beneficiary *identity.ID `json:"beneficiary"`
	RequestID   string       `json:"request_id" validate:"omitempty,max=64,printascii"`
}

type closeReq struct {
	To *identity.ID `json:"to"`
}

// faucetParam parses the :id path segment.
func faucetParam(c echo.Context) (identity.ID, bool) {
	id, err := identity.Parse(strings.TrimSpace(c.Param("id")))
	return id, err == nil
}

func invalidFaucetID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid faucet id"})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func createFaucetHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		var req createReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}

		f, err := svc.Create(c.Request().Context(), signer, req.TokenType)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusCreated, f)
	}
}

func getFaucetHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		v, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func updateFaucetHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		var req updateReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}
		patch := req.patch()
		if patch.Empty() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "empty patch"})
		}

		f, err := svc.Update(c.Request().Context(), signer, id, patch)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, f)
	}
}

func depositHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		var req depositReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}

		r, err := svc.Deposit(c.Request().Context(), signer, id, req.From, req.Amount, strings.TrimSpace(req.RequestID))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func withdrawHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		var req withdrawReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}

		r, err := svc.Withdraw(c.Request().Context(), signer, id, req.To, req.Amount, strings.TrimSpace(req.RequestID))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func payoutHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		var req payoutReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}

		r, err := svc.Payout(c.Request().Context(), faucet.PayoutRequest{
			FaucetID:    id,
			Requester:   signer,
			Beneficiary: req.Beneficiary,
			To:          req.To,
			Quantity:    req.Quantity,
			RequestID:   strings.TrimSpace(req.RequestID),
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func closeHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}
		var req closeReq
		if err := bind(c, &req); err != nil {
			return badRequest(c, err)
		}

		r, err := svc.Close(c.Request().Context(), signer, id, req.To)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func throttleHandler(svc *faucet.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := faucetParam(c)
		if !ok {
			return invalidFaucetID(c)
		}

		st, err := svc.ThrottleStatus(c.Request().Context(), id, signer)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, st)
	}
}
