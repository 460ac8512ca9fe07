package idempotency_test

import (
	"context"
	"testing"

	"github.com/architeacher/device-catalog/pkg/idempotency"
	"github.com/stretchr/testify/require"
)

type otherKey struct{}

func TestFromContext(t *testing.T) {
	t.Parallel()

	req := idempotency.Request{Key: validKey, Method: "POST", Path: "/v1/devices"}

	cases := []struct {
		name          string
		ctx           func(context.Context) context.Context
		expectedFound bool
	}{
		{
			name:          "stored request",
			ctx:           func(ctx context.Context) context.Context { return idempotency.WithRequest(ctx, req) },
			expectedFound: true,
		},
		{
			name: "nothing stored",
			ctx:  func(ctx context.Context) context.Context { return ctx },
		},
		{
			name: "request without a key",
			ctx: func(ctx context.Context) context.Context {
				return idempotency.WithRequest(ctx, idempotency.Request{Method: "POST"})
			},
		},
		{
			name: "unrelated value under another key",
			ctx: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, otherKey{}, req)
			},
		},
		{
			name: "survives derived contexts",
			ctx: func(ctx context.Context) context.Context {
				return context.WithValue(idempotency.WithRequest(ctx, req), otherKey{}, "unrelated")
			},
			expectedFound: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, found := idempotency.FromContext(tc.ctx(t.Context()))

			require.Equal(t, tc.expectedFound, found)

			if tc.expectedFound {
				require.Equal(t, req, got)
			}
		})
	}
}
