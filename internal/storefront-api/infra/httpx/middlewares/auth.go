package middlewares

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront/internal/pkg/identity"
)

// ErrorWriter renders a classified error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate resolves the Authorization header and stores the Identity in
// the request context. Requests without a valid token are rejected.
func Authenticate(p *identity.Provider, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := p.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				fail(w, r, err)
				return
			}
			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("enduser.id", id.UserID),
				attribute.String("enduser.role", string(id.Role)),
			)
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// Require lets the request through only when the caller may perform action.
// It must run after Authenticate.
func Require(action identity.Action, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identity.FromContext(r.Context())
			if err := identity.Authorize(id, action); err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
