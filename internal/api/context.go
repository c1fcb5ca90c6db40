package api

import (
	"context"

	"github.com/dispatch-cms/dispatch/pkg/auth"
)

type ctxKey struct{}

func withPayload(ctx context.Context, p *auth.Payload) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PayloadFrom returns the verified token payload of an authenticated request.
func PayloadFrom(ctx context.Context) (*auth.Payload, bool) {
	p, ok := ctx.Value(ctxKey{}).(*auth.Payload)
	return p, ok
}
