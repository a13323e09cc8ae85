package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes CloudEvents, retrying transient broker errors with exponential backoff.
type Producer struct {
	writer     messageWriter
	maxRetries uint64
	initial    time.Duration
	logger     *zap.Logger
}

// NewProducer creates a producer for the given brokers. The topic is chosen per message.
func NewProducer(brokers []string, maxRetries uint64, logger *zap.Logger) *Producer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, maxRetries, logger)
}

func newProducer(w messageWriter, maxRetries uint64, logger *zap.Logger) *Producer {
	return &Producer{
		writer:     w,
		maxRetries: maxRetries,
		initial:    100 * time.Millisecond,
		logger:     logger,
	}
}

// PublishEvent writes evt to topic, keyed by the event subject when it has one.
func (p *Producer) PublishEvent(ctx context.Context, topic string, evt *CloudEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	key := evt.Subject
	if key == "" {
		key = evt.ID
	}
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "ce_type", Value: []byte(evt.Type)},
			{Key: "content-type", Value: []byte("application/cloudevents+json")},
		},
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			p.logger.Warn("kafka publish attempt failed",
				zap.String("topic", topic),
				zap.String("type", evt.Type),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx)); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", evt.Type, topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", evt.Type),
		zap.String("id", evt.ID),
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
