package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/printworks/api/internal/platform/requestctx"
	"go.uber.org/zap"
)

// Metrics exposes the counters the service emits for alerting. All methods are
// safe on a nil receiver so callers can skip wiring in tests.
type Metrics struct {
	webhookAnomalies  metric.Int64Counter
	signatureFailures metric.Int64Counter
	rateLimitRejects  metric.Int64Counter
}

// NewMetrics registers the service counters against the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/printworks/api")

	anomalies, err := meter.Int64Counter("webhook.anomalies",
		metric.WithDescription("payment webhook events that could not be applied to the order state machine"))
	if err != nil {
		return nil, err
	}
	signatures, err := meter.Int64Counter("webhook.signature_failures",
		metric.WithDescription("payment webhook requests rejected for a bad or missing signature"))
	if err != nil {
		return nil, err
	}
	rejects, err := meter.Int64Counter("quotes.rate_limited",
		metric.WithDescription("quote submissions rejected by the per-customer rate limit"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookAnomalies:  anomalies,
		signatureFailures: signatures,
		rateLimitRejects:  rejects,
	}, nil
}

// RecordWebhookAnomaly counts a webhook event that was ledgered but not
// applied, labelled with why (invalid transition, unknown order).
func (m *Metrics) RecordWebhookAnomaly(ctx context.Context, eventType, reason string) {
	if m == nil || m.webhookAnomalies == nil {
		return
	}
	m.webhookAnomalies.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("reason", reason),
		))
	requestctx.Logger(ctx).Warn("webhook anomaly recorded",
		zap.String("event_type", eventType),
		zap.String("reason", reason),
	)
}

// RecordSignatureFailure counts a webhook rejected during signature verification.
func (m *Metrics) RecordSignatureFailure(ctx context.Context) {
	if m == nil || m.signatureFailures == nil {
		return
	}
	m.signatureFailures.Add(ctx, 1)
}

// RecordRateLimitRejection counts a quote submission turned away at the limiter.
func (m *Metrics) RecordRateLimitRejection(ctx context.Context) {
	if m == nil || m.rateLimitRejects == nil {
		return
	}
	m.rateLimitRejects.Add(ctx, 1)
}
