// Package events publishes post lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const (
	PostCreated   = "post.created"
	PostPublished = "post.published"
	PostFailed    = "post.failed"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the JSON body written to the topic.
type Event struct {
	Type       string            `json:"type" validate:"required,oneof=post.created post.published post.failed"`
	UserID     string            `json:"user_id" validate:"required"`
	PostID     string            `json:"post_id" validate:"required"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Producer is the subset of the Kafka producer used here.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaPublisher keys records by post ID so a post's events stay ordered.
type KafkaPublisher struct {
	producer  Producer
	topic     string
	validator *validator.Validate
	logger    logging.Logger
}

func NewKafkaPublisher(producer Producer, topic string, logger logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer:  producer,
		topic:     topic,
		validator: validator.New(),
		logger:    logger,
	}
}

// Publish rejects malformed events before they reach the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.validator.Struct(evt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := map[string]string{"event_type": evt.Type}
	if err := p.producer.Produce(ctx, p.topic, []byte(evt.PostID), body, headers); err != nil {
		return fmt.Errorf("produce %s: %w", evt.Type, err)
	}
	p.logger.WithFields(logging.Fields{
		"event_type": evt.Type,
		"post_id":    evt.PostID,
	}).Debug("Published event")
	return nil
}

// Noop discards events when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Emit publishes without failing the caller; errors are logged.
func Emit(ctx context.Context, pub Publisher, logger logging.Logger, evt Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.WithFields(logging.Fields{
			"event_type": evt.Type,
			"post_id":    evt.PostID,
			"error":      err,
		}).Warn("Failed to publish event")
	}
}
