package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A returned error is retried with backoff; once the
// retries run out it is logged and the message is still committed, so one poison message
// cannot stall the partition. Wrap an error with Permanent to skip the retries.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Permanent marks err as not worth retrying, such as a payload that will never parse.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader     messageReader
	topic      string
	maxRetries uint64
	initial    time.Duration
	logger     *zap.Logger
}

// NewConsumer creates a consumer group reader for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
	})
	return &Consumer{
		reader:     r,
		topic:      topic,
		maxRetries: 5,
		initial:    200 * time.Millisecond,
		logger:     logger,
	}
}

// Consume fetches messages serially and hands each to handler until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("kafka consumer started", zap.String("topic", c.topic))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("failed to fetch message from %s: %w", c.topic, err)
		}

		if err := c.handle(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				// Uncommitted, so the group redelivers it.
				return ctx.Err()
			}
			c.logger.Error("failed to handle kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d on %s: %w", msg.Offset, c.topic, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg kafkago.Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initial
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var permanent *backoff.PermanentError
		if !errors.As(err, &permanent) {
			c.logger.Warn("kafka message handling attempt failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}

// Close shuts down the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
