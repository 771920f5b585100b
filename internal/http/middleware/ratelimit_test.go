package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

func TestRateLimit_InProcess(t *testing.T) {
	e := echo.New()
	signer := identity.New()
	mw := RateLimitMiddleware(RateLimitConfig{DefaultRPS: 2, Burst: 2, RetryAfterHint: true})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	call := func(rps int) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set(ctxSigner, signer)
		if rps > 0 {
			c.Set(ctxSignerRPS, rps)
		}
		_ = h(c)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call(0).Code)
	assert.Equal(t, http.StatusNoContent, call(0).Code)
	rec := call(0)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// a signer-specific limit replaces the default bucket
	for range 5 {
		assert.Equal(t, http.StatusNoContent, call(100).Code)
	}
}

func TestRateLimit_Anonymous(t *testing.T) {
	e := echo.New()
	mw := RateLimitMiddleware(RateLimitConfig{DefaultRPS: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for range 3 {
		rec := httptest.NewRecorder()
		_ = h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
