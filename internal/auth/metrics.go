package auth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/supreset/identity/internal/auth"

// Metrics counts authentication outcomes.
type Metrics struct {
	logins        metric.Int64Counter
	codesSent     metric.Int64Counter
	verifications metric.Int64Counter
	rejections    metric.Int64Counter
}

func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by method and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	codesSent, err := meter.Int64Counter("auth.codes.sent",
		metric.WithDescription("Verification code send requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create codes counter: %w", err)
	}

	verifications, err := meter.Int64Counter("auth.codes.verified",
		metric.WithDescription("Verification code checks by result"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verifications counter: %w", err)
	}

	rejections, err := meter.Int64Counter("auth.guard.rejections",
		metric.WithDescription("Requests rejected by the session guard by reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rejections counter: %w", err)
	}

	return &Metrics{
		logins:        logins,
		codesSent:     codesSent,
		verifications: verifications,
		rejections:    rejections,
	}, nil
}

func NewNoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

func (m *Metrics) login(ctx context.Context, method string, err error) {
	m.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *Metrics) codeSent(ctx context.Context, err error) {
	m.codesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func (m *Metrics) codeVerified(ctx context.Context, result CodeResult) {
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result.String())))
}

func (m *Metrics) rejected(ctx context.Context, reason string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return AsError(err).Kind.String()
}
