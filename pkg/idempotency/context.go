package idempotency

import "context"

type requestCtxKey struct{}

func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, req)
}

// FromContext returns the request stored by WithRequest, if any.
func FromContext(ctx context.Context) (Request, bool) {
	req, ok := ctx.Value(requestCtxKey{}).(Request)

	return req, ok && req.Key != ""
}
