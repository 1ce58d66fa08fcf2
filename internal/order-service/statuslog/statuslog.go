// Package statuslog records every status an order goes through.
//
// The log is append-only. Each entry carries the trace and span ids of the
// request that caused it, so a row can be joined with its distributed trace.
package statuslog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Entry is a single row in the order_status_log table.
type Entry struct {
	OrderID string

	// FromStatus is empty for the entry written when the order is placed.
	FromStatus string
	ToStatus   string

	// Actor is the user id that caused the transition.
	Actor string

	TraceID string
	SpanID  string

	CreatedAt time.Time
}

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo reads the active span from ctx. Both fields are empty when
// there is no valid span, which is the normal case in tests.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an Entry with the trace info taken from ctx.
func NewEntry(ctx context.Context, orderID, from, to, actor string) *Entry {
	ti := ExtractTraceInfo(ctx)
	return &Entry{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		TraceID:    ti.TraceID,
		SpanID:     ti.SpanID,
		CreatedAt:  time.Now().UTC(),
	}
}
