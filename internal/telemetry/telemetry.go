// Package telemetry owns the OpenTelemetry instruments the engine records to.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taptosell.installments"

// Metrics groups the engine counters. A nil *Metrics records nothing.
type Metrics struct {
	requestsCreated  metric.Int64Counter
	offersSubmitted  metric.Int64Counter
	offersResolved   metric.Int64Counter
	installmentsLate metric.Int64Counter
	installmentsPaid metric.Int64Counter
}

// New registers the counters on the global meter provider.
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(meterName))
}

// NewWithMeter registers the counters on meter.
func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.requestsCreated, err = meter.Int64Counter("installment.requests.created",
		metric.WithDescription("Installment requests created"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}
	if m.offersSubmitted, err = meter.Int64Counter("installment.offers.submitted",
		metric.WithDescription("Offers submitted by primary sellers and suppliers"),
		metric.WithUnit("{offer}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create offers counter: %w", err)
	}
	if m.offersResolved, err = meter.Int64Counter("installment.offers.resolved",
		metric.WithDescription("Buyer decisions on offers"),
		metric.WithUnit("{offer}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create resolutions counter: %w", err)
	}
	if m.installmentsLate, err = meter.Int64Counter("installment.installments.overdue",
		metric.WithDescription("Installments marked overdue by the sweeper"),
		metric.WithUnit("{installment}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create overdue counter: %w", err)
	}
	if m.installmentsPaid, err = meter.Int64Counter("installment.installments.paid",
		metric.WithDescription("Installments marked paid"),
		metric.WithUnit("{installment}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create paid counter: %w", err)
	}
	return m, nil
}

// RequestCreated records one new request.
func (m *Metrics) RequestCreated(ctx context.Context, frequency string) {
	if m == nil {
		return
	}
	m.requestsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("frequency", frequency)))
}

// OfferSubmitted records one new offer from source ("primary_seller" or "supplier").
func (m *Metrics) OfferSubmitted(ctx context.Context, source, offerType string) {
	if m == nil {
		return
	}
	m.offersSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("type", offerType),
	))
}

// OfferResolved records one buyer decision.
func (m *Metrics) OfferResolved(ctx context.Context, decision, outcome string) {
	if m == nil {
		return
	}
	m.offersResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("outcome", outcome),
	))
}

// InstallmentsOverdue records n installments newly marked overdue.
func (m *Metrics) InstallmentsOverdue(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.installmentsLate.Add(ctx, int64(n))
}

// InstallmentPaid records one payment.
func (m *Metrics) InstallmentPaid(ctx context.Context, wasOverdue bool) {
	if m == nil {
		return
	}
	m.installmentsPaid.Add(ctx, 1, metric.WithAttributes(attribute.Bool("was_overdue", wasOverdue)))
}
