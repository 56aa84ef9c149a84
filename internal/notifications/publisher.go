package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/printworks/api/internal/domain"
)

// PubSubPublisher publishes notification events to a Pub/Sub topic. Delivery
// to SMS or email channels is handled by the subscriber, not this service.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	wait    time.Duration
	marshal func(any) ([]byte, error)
}

// PublisherOption customises publisher behaviour.
type PublisherOption func(*PubSubPublisher)

// WithPublishWait bounds how long Publish blocks on broker acknowledgement.
func WithPublishWait(wait time.Duration) PublisherOption {
	return func(p *PubSubPublisher) {
		if wait > 0 {
			p.wait = wait
		}
	}
}

// NewPubSubPublisher constructs a Pub/Sub backed notification publisher.
func NewPubSubPublisher(topic *pubsub.Topic, opts ...PublisherOption) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub notification publisher: topic is required")
	}
	publisher := &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}
	return publisher, nil
}

// Publish enqueues a notification event on the configured topic and returns
// the broker-assigned message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, event domain.NotificationEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub notification publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal notification event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", string(event.Kind))
	setAttr(attrs, "number", event.Number)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	waitCtx := ctx
	if p.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.wait)
		defer cancel()
	}

	id, err := result.Get(waitCtx)
	if err != nil {
		return "", fmt.Errorf("publish notification event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
