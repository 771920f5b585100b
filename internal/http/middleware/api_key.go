package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

const (
	HeaderAPIKey = "X-API-Key"

	ctxSigner    = "signer"
	ctxSignerRPS = "signer_rps"
)

// SignerFromCtx returns the identity authenticated by APIKeyMiddleware.
func SignerFromCtx(c echo.Context) (identity.ID, bool) {
	id, ok := c.Get(ctxSigner).(identity.ID)
	return id, ok && !id.IsZero()
}

// APIKeyMiddleware resolves X-API-Key to an active signer and stores its identity (and
// optional per-signer rate limit) in the echo context.
func APIKeyMiddleware(signers repository.SignersRepository, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(HeaderAPIKey))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			s, err := signers.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				log.Error("signer lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if s == nil || !s.Active() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set(ctxSigner, s.Identity)
			if s.RateLimitRPS != nil {
				c.Set(ctxSignerRPS, *s.RateLimitRPS)
			}
			return next(c)
		}
	}
}
