package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		m.ObserveUseCase("order.place", "success", time.Millisecond)
		m.NotificationFailed("order_confirmation")
	})
}

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveUseCase("order.place", "success", 10*time.Millisecond)
	m.ObserveUseCase("order.place", "success", 10*time.Millisecond)
	m.NotificationFailed("low_stock_alert")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.usecaseRequests.WithLabelValues("order.place", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationFailures.WithLabelValues("low_stock_alert")))
}

func TestFromContext_FallsBack(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	scoped := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx))
	assert.Same(t, scoped, FromContextOr(ctx, fallback))
}
