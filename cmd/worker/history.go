package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/db"
	"github.com/jmehdipour/faucet-gateway/internal/kafka"
	"github.com/jmehdipour/faucet-gateway/internal/logger"
	"github.com/jmehdipour/faucet-gateway/internal/metrics"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
	"github.com/jmehdipour/faucet-gateway/internal/worker"
)

var metricsAddr string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Copy payout events from Kafka into ClickHouse",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address serving /metrics; empty disables it")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	chDB, err := db.NewClickHouse(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	lanes := cfg.History.Workers
	if lanes <= 0 {
		lanes = 1
	}
	topic := cfg.Kafka.PayoutsTopic
	if topic == "" {
		topic = "faucet.payouts"
	}

	sources := make([]worker.Source, 0, lanes)
	consumers := make([]*kafka.Consumer, 0, lanes)
	for range lanes {
		c := kafka.NewConsumer(cfg.Kafka, topic)
		consumers = append(consumers, c)
		sources = append(sources, c)
	}
	defer func() {
		for _, c := range consumers {
			_ = c.Close()
		}
	}()

	threshold, openFor := cfg.History.Breaker.FailThreshold, time.Duration(cfg.History.Breaker.OpenForMs)*time.Millisecond
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}

	h := worker.NewHistory(repository.NewCHPayoutsRepository(chDB), worker.NewBreaker(threshold, openFor), log, sources...)
	if cfg.History.BatchSize > 0 {
		h.BatchSize = cfg.History.BatchSize
	}
	if cfg.History.BatchWait > 0 {
		h.BatchWait = cfg.History.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reportLag(ctx, consumers)
	if metricsAddr != "" {
		go serveMetrics(ctx, log, metricsAddr)
	}

	log.Info("history worker started",
		zap.String("topic", topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("lanes", lanes),
		zap.Int("batch_size", h.BatchSize),
		zap.Duration("batch_wait", h.BatchWait),
	)
	return h.Run(ctx)
}

// reportLag publishes the summed consumer lag until ctx is done.
func reportLag(ctx context.Context, consumers []*kafka.Consumer) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			var lag int64
			for _, c := range consumers {
				if l := c.Lag(); l > 0 {
					lag += l
				}
			}
			metrics.HistoryLag.Set(float64(lag))
		}
	}
}

func serveMetrics(ctx context.Context, log *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
