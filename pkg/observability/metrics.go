package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the domain counters exported next to the HTTP metrics.
type Metrics struct {
	handoffs    metric.Int64Counter
	payments    metric.Int64Counter
	ruleMatches metric.Int64Counter
	webhooks    metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider. It must be
// called after InitTelemetry for the counters to reach Prometheus.
func NewMetrics() *Metrics {
	meter := otel.Meter(tracerName)
	m := &Metrics{}
	m.handoffs, _ = meter.Int64Counter("medcenter_handoff_total",
		metric.WithDescription("Confirm-to-doctor attempts by outcome"))
	m.payments, _ = meter.Int64Counter("medcenter_payment_total",
		metric.WithDescription("Recorded payments by method and status"))
	m.ruleMatches, _ = meter.Int64Counter("medcenter_rule_match_total",
		metric.WithDescription("Business rule matches by trigger and action"))
	m.webhooks, _ = meter.Int64Counter("medcenter_webhook_total",
		metric.WithDescription("Received webhooks by provider and signature validity"))
	return m
}

func (m *Metrics) Handoff(ctx context.Context, outcome string) {
	if m == nil || m.handoffs == nil {
		return
	}
	m.handoffs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) Payment(ctx context.Context, method, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	))
}

func (m *Metrics) RuleMatch(ctx context.Context, trigger, action string) {
	if m == nil || m.ruleMatches == nil {
		return
	}
	m.ruleMatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("action", action),
	))
}

func (m *Metrics) Webhook(ctx context.Context, provider string, valid bool) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("signature_valid", valid),
	))
}
