package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/http/middleware"
	"github.com/jmehdipour/faucet-gateway/internal/metrics"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/service/faucet"
)

// Deps are the collaborators the API is served from.
type Deps struct {
	Faucets *faucet.Service
	Signers repository.SignersRepository
	History repository.PayoutHistoryRepository
	Redis   *redis.Client // nil: per-instance rate limiting
	Health  func(ctx context.Context) error
	Log     *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.ERROR)
	e.Validator = newRequestValidator()

	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		requestLogger(d.Log),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/healthz", func(c echo.Context) error {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	authMW := middleware.APIKeyMiddleware(d.Signers, d.Log)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		DefaultRPS:     cfg.RateLimit.RPS,
		Burst:          cfg.RateLimit.Burst,
		KeyPrefix:      "rl:signer:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// faucet state is public
	e.GET("/v1/faucets/:id", getFaucetHandler(d.Faucets, d.Log))

	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/faucets", createFaucetHandler(d.Faucets, d.Log))
	v1.PATCH("/faucets/:id", updateFaucetHandler(d.Faucets, d.Log))
	v1.POST("/faucets/:id/deposit", depositHandler(d.Faucets, d.Log))
	v1.POST("/faucets/:id/withdraw", withdrawHandler(d.Faucets, d.Log))
	v1.POST("/faucets/:id/payout", payoutHandler(d.Faucets, d.Log))
	v1.POST("/faucets/:id/close", closeHandler(d.Faucets, d.Log))
	v1.GET("/faucets/:id/throttle", throttleHandler(d.Faucets, d.Log))
	v1.GET("/reports/payouts", listPayoutsHandler(d.History, d.Log))

	return &Server{e: e, log: d.Log}
}

// requestLogger writes one zap line per request.
func requestLogger(l *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				l.Warn("http request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			l.Info("http request", fields...)
			return nil
		},
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
