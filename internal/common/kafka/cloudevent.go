// Package kafka carries CloudEvents over Kafka topics with segmentio/kafka-go.
package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SpecVersion is the CloudEvents version emitted by NewCloudEvent.
const SpecVersion = "1.0"

// CloudEvent is the structured-mode CloudEvents envelope used on every topic.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// NewCloudEvent wraps data in a new envelope with a generated id.
func NewCloudEvent(source, eventType string, data interface{}) (*CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return &CloudEvent{
		SpecVersion:     SpecVersion,
		ID:              uuid.NewString(),
		Source:          source,
		Type:            eventType,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            raw,
	}, nil
}

// WithSubject sets the subject, which is also used as the Kafka message key.
func (e *CloudEvent) WithSubject(subject string) *CloudEvent {
	e.Subject = subject
	return e
}

// ParseCloudEvent decodes an envelope and checks the required attributes.
func ParseCloudEvent(b []byte) (*CloudEvent, error) {
	var evt CloudEvent
	if err := json.Unmarshal(b, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode cloud event: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, errors.New("cloud event is missing id or type")
	}
	return &evt, nil
}

// ParseData decodes the event payload into v.
func (e *CloudEvent) ParseData(v interface{}) error {
	if len(e.Data) == 0 {
		return errors.New("cloud event has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return nil
}
