package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics_ImplementsInterface(t *testing.T) {
	var _ MetricsRecorder = NoopMetrics{}
}

func TestNoopMetrics_DoesNotPanic(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordDispatch(ctx, "com.example.eventType.test")
		m.RecordDelivery(ctx, "com.example.module.a", 5*time.Millisecond)
		m.RecordSharedStateWrite(ctx, "com.example.module.a", "standard")
		m.RecordResponseOutcome(ctx, true)
		m.RecordInboxDepth(ctx, "com.example.module.a", 12)
	})

	t.Run("nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordDispatch(nil, "")
			m.RecordDelivery(nil, "", 0)
		})
	})
}

func TestNoopSpanManager_ImplementsInterface(t *testing.T) {
	var _ SpanManager = NoopSpanManager{}
}

func TestNoopSpanManager_DoesNotPanic(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ctx, span := sm.StartDispatchSpan(ctx, "t", "id")
		sm.AddSpanEvent(ctx, "event", attribute.Bool("ok", true))
		sm.EndSpanWithError(span, nil)
		sm.EndSpanWithError(nil, nil)
	})
}
