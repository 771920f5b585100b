package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/http/middleware"
	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

// listPayoutsHandler returns the signer's payout history, newest first.
func listPayoutsHandler(history repository.PayoutHistoryRepository, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		signer, ok := middleware.SignerFromCtx(c)
		if !ok {
			return unauthorized(c)
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		f := repository.PayoutFilter{Requester: signer, Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(c.QueryParam("faucet")); raw != "" {
			id, err := identity.Parse(raw)
			if err != nil {
				return invalidFaucetID(c)
			}
			f.FaucetID = id
		}

		rows, err := history.List(c.Request().Context(), f)
		if err != nil {
			log.Error("payout history query failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
