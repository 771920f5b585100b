package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jmehdipour/faucet-gateway/internal/config"
)

type Message = kafka.Message

// Consumer reads one topic as a member of a consumer group. Offsets are committed
// explicitly, after the fetched messages have been persisted.
type Consumer struct {
	r *kafka.Reader
}

// NewConsumer builds a group reader for topic from the kafka config section.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	commit := time.Duration(cfg.CommitInterval) * time.Millisecond
	if commit <= 0 {
		commit = time.Second
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: commit,
		MaxWait:        250 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
	})
	return &Consumer{r: r}
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

// Lag is the number of messages behind the partition head, or -1 when unknown.
func (c *Consumer) Lag() int64 { return c.r.Stats().Lag }

func (c *Consumer) Close() error { return c.r.Close() }
