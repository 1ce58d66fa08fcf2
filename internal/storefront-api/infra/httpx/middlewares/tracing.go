package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront/internal/pkg/reqctx"
)

// AttachRequestMetadata copies the chi request id and the idempotency header
// into the request context, so logs and services can read them.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(reqctx.HeaderXIdempotencyKey)

		ctx := reqctx.WithRequestID(r.Context(), requestID)
		ctx = reqctx.WithIdempotencyKey(ctx, idempotencyKey)

		if requestID != "" {
			w.Header().Set(reqctx.HeaderXRequestId, requestID)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request_id", requestID))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
