package notifications

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/printworks/api/internal/domain"
)

// LogPublisher records notification events on the logger instead of
// publishing them. It stands in for the Pub/Sub publisher when no topic is
// configured, typically in local development.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a logger backed notification publisher.
func NewLogPublisher(logger *zap.Logger) (*LogPublisher, error) {
	if logger == nil {
		return nil, errors.New("log notification publisher: logger is required")
	}
	return &LogPublisher{logger: logger}, nil
}

// Publish logs the event and reports an empty message ID.
func (p *LogPublisher) Publish(_ context.Context, event domain.NotificationEvent) (string, error) {
	if p == nil || p.logger == nil {
		return "", errors.New("log notification publisher: not initialised")
	}
	p.logger.Info("notification event",
		zap.String("kind", string(event.Kind)),
		zap.String("number", event.Number),
	)
	return "", nil
}
