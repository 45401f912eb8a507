package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestMetrics_RecordOnNoopMeter(t *testing.T) {
	m, err := NewWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RequestCreated(ctx, "monthly")
		m.OfferSubmitted(ctx, "supplier", "full")
		m.OfferResolved(ctx, "accept", "active_contract")
		m.InstallmentsOverdue(ctx, 2)
		m.InstallmentPaid(ctx, true)
	})
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestCreated(context.Background(), "weekly")
		m.InstallmentsOverdue(context.Background(), 1)
	})
}

func TestNew_UsesGlobalProvider(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	assert.NotNil(t, m)
}
