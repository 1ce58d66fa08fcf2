package kafka

import (
	"context"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestHeaderCarrierInjectsTraceparent(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	msg := kafkaGo.Message{Topic: "orders.placed"}
	carrier := headerCarrier{msg: &msg}
	propagation.TraceContext{}.Inject(ctx, carrier)

	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())

	carrier.Set("traceparent", "x")
	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, "x", carrier.Get("traceparent"))
}

func TestNewPublisherFlushesSingleEventsPromptly(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"})
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, flushInterval, p.writer.BatchTimeout)
	assert.LessOrEqual(t, p.writer.BatchTimeout, 50*time.Millisecond)
	assert.Equal(t, kafkaGo.RequireAll, p.writer.RequiredAcks)
}
