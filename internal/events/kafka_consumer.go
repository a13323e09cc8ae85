package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/application"
	commonEvents "github.com/tripjournal/service-trips/internal/common/events"
	kafkaLib "github.com/tripjournal/service-trips/internal/common/kafka"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
)

// SampleHandler is the part of the auto-save service the consumer drives.
type SampleHandler interface {
	HandleSample(ctx context.Context, ownerID uuid.UUID, sample tripDomain.Sample) (*application.SampleResult, error)
}

// LocationSampleConsumer consumes device location samples and feeds them to auto-save.
type LocationSampleConsumer struct {
	consumer *kafkaLib.Consumer
	service  SampleHandler
	logger   *zap.Logger
}

// NewLocationSampleConsumer creates a new consumer for the given samples topic.
func NewLocationSampleConsumer(
	brokers []string,
	groupID string,
	topic string,
	service SampleHandler,
	logger *zap.Logger,
) *LocationSampleConsumer {
	consumer := kafkaLib.NewConsumer(brokers, groupID, topic, logger)
	return &LocationSampleConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming samples. Blocks until the context is cancelled.
func (c *LocationSampleConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage processes a single sample message. Rejected samples are not errors; payloads
// that cannot be parsed are skipped without retry, store failures are retried.
func (c *LocationSampleConsumer) handleMessage(ctx context.Context, msg kafkaGo.Message) error {
	cloudEvent, err := kafkaLib.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from samples topic",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
		return kafkaLib.Permanent(err)
	}

	switch cloudEvent.Type {
	case commonEvents.DeviceLocationSampled:
		var evt commonEvents.LocationSampledEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse location sampled event data", zap.Error(err))
			return kafkaLib.Permanent(err)
		}
		var ts *time.Time
		if !evt.Timestamp.IsZero() {
			ts = &evt.Timestamp
		}
		sample := application.NewSample(evt.Latitude, evt.Longitude, evt.Altitude, evt.RoadName, evt.Address, ts)

		result, err := c.service.HandleSample(ctx, evt.OwnerID, sample)
		if err != nil {
			return err
		}
		c.logger.Debug("location sample processed",
			zap.String("owner_id", evt.OwnerID.String()),
			zap.Bool("accepted", result.Accepted),
			zap.String("reason", result.Reason),
		)
		return nil

	default:
		c.logger.Debug("ignoring unhandled sample event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// Close shuts down the sample consumer.
func (c *LocationSampleConsumer) Close() error {
	return c.consumer.Close()
}
