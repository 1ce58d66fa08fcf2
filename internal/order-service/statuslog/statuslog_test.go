package statuslog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewEntryWithoutSpan(t *testing.T) {
	e := NewEntry(context.Background(), "o-1", "", "PENDING", "u-1")

	assert.Equal(t, "o-1", e.OrderID)
	assert.Empty(t, e.FromStatus)
	assert.Equal(t, "PENDING", e.ToStatus)
	assert.Empty(t, e.TraceID)
	assert.Empty(t, e.SpanID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestNewEntryCarriesTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "update-status")
	defer span.End()

	e := NewEntry(ctx, "o-1", "PENDING", "CANCELED", "admin")
	require.NotEmpty(t, e.TraceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), e.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), e.SpanID)
}
