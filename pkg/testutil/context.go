package testutil

import (
	"context"
	"net/http"

	"kycflow/pkg/requestcontext"
)

// WithReviewer attaches a reviewer identity to the request, as the reviewer
// middleware would after validating a bearer token.
func WithReviewer(req *http.Request, reviewer string) *http.Request {
	if reviewer == "" {
		return req
	}
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewer))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
