package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/service/faucet"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (r *requestValidator) Validate(i any) error {
	return r.v.Struct(i)
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func badRequest(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid payload", "detail": verrs.Error()})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
}

// respondError maps service errors to their stable code and status.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	code, status := faucet.Code(err), faucet.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		return c.JSON(status, map[string]string{"error": code})
	}
	return c.JSON(status, map[string]string{"error": code, "detail": err.Error()})
}
