package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmehdipour/faucet-gateway/internal/kafka"
	"github.com/jmehdipour/faucet-gateway/internal/metrics"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository"
)

var errBreakerOpen = errors.New("history store breaker open")

// Source is a committed-offset message stream, satisfied by *kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// History copies payout events from Kafka into the payout history store:
//   - each source is drained by its own lane so offsets are committed in fetch order,
//   - rows are buffered and flushed by size or time,
//   - offsets are committed only after the rows they carry were written.
//
// Redelivered events overwrite their earlier copy, so at-least-once delivery is enough.
type History struct {
	Sources []Source
	Store   repository.PayoutHistoryRepository
	Breaker *Breaker
	Log     *zap.Logger

	BatchSize int
	BatchWait time.Duration
}

func NewHistory(store repository.PayoutHistoryRepository, breaker *Breaker, log *zap.Logger, sources ...Source) *History {
	return &History{
		Sources:   sources,
		Store:     store,
		Breaker:   breaker,
		Log:       log,
		BatchSize: 500,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled, then flushes what every lane still buffers.
func (h *History) Run(ctx context.Context) error {
	if len(h.Sources) == 0 {
		return errors.New("history: no sources")
	}
	if h.BatchSize <= 0 {
		h.BatchSize = 500
	}
	if h.BatchWait <= 0 {
		h.BatchWait = time.Second
	}
	if h.Breaker == nil {
		h.Breaker = NewBreaker(3, 15*time.Second)
	}
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range h.Sources {
		g.Go(func() error { return h.runLane(ctx, i, src) })
	}
	return g.Wait()
}

func (h *History) runLane(ctx context.Context, lane int, src Source) error {
	log := h.Log.With(zap.Int("lane", lane))
	in := make(chan kafka.Message, h.BatchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
		for {
			m, err := src.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case in <- m:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		b := &batch{}
		tick := time.NewTicker(h.BatchWait)
		defer tick.Stop()

		for {
			// stop reading while a full batch cannot be written
			recv := in
			if len(b.pending) >= h.BatchSize {
				recv = nil
			}

			select {
			case <-ctx.Done():
				h.drain(log, src, b)
				return nil

			case m, ok := <-recv:
				if !ok {
					h.drain(log, src, b)
					return nil
				}
				b.add(log, m)
				if len(b.pending) >= h.BatchSize {
					h.flushLogged(ctx, log, src, b)
				}

			case <-tick.C:
				h.flushLogged(ctx, log, src, b)
			}
		}
	})
	return g.Wait()
}

// drain makes a last flush attempt on shutdown with a short deadline of its own.
func (h *History) drain(log *zap.Logger, src Source, b *batch) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.flushLogged(ctx, log, src, b)
}

func (h *History) flushLogged(ctx context.Context, log *zap.Logger, src Source, b *batch) {
	rows, msgs := len(b.rows), len(b.pending)
	err := h.flush(ctx, src, b)
	switch {
	case err == nil:
		if msgs > 0 {
			log.Debug("history flushed", zap.Int("rows", rows), zap.Int("messages", msgs))
		}
	case errors.Is(err, errBreakerOpen):
		log.Debug("history flush deferred", zap.Int("rows", rows))
	default:
		log.Error("history flush failed", zap.Int("rows", rows), zap.String("breaker", h.Breaker.State()), zap.Error(err))
	}
}

// flush writes buffered rows, then commits their offsets. The buffer is kept on failure.
func (h *History) flush(ctx context.Context, src Source, b *batch) error {
	if len(b.pending) == 0 {
		return nil
	}

	if len(b.rows) > 0 {
		if !h.Breaker.Allow() {
			return errBreakerOpen
		}
		if err := h.Store.InsertBatch(ctx, b.rows); err != nil {
			h.Breaker.Failure()
			metrics.HistoryRowsTotal.WithLabelValues("failed").Add(float64(len(b.rows)))
			return err
		}
		h.Breaker.Success()
		metrics.HistoryRowsTotal.WithLabelValues("written").Add(float64(len(b.rows)))
		b.rows = b.rows[:0]
	}

	if err := src.Commit(ctx, b.pending...); err != nil {
		return err
	}
	b.pending = b.pending[:0]
	return nil
}

type batch struct {
	rows    []model.PayoutRow
	pending []kafka.Message
}

// add decodes m. Undecodable and non-payout events are committed without a row.
func (b *batch) add(log *zap.Logger, m kafka.Message) {
	b.pending = append(b.pending, m)

	value := m.Value
	// the outbox relay may deliver the payload column as an escaped JSON string
	var wrapped string
	if json.Unmarshal(value, &wrapped) == nil {
		value = []byte(wrapped)
	}

	var ev model.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		metrics.HistoryRowsTotal.WithLabelValues("skipped").Inc()
		log.Warn("bad payout event", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if ev.Op != model.OpPayout || ev.ID == "" {
		metrics.HistoryRowsTotal.WithLabelValues("skipped").Inc()
		return
	}
	b.rows = append(b.rows, model.PayoutRowFromEvent(ev))
}
