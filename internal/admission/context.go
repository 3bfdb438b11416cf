package admission

import (
	"context"

	"github.com/nodebridge/rpc-gateway/pkg/app"
)

type ctxKey struct{}

// NewContext stores the resolved App in the context.
func NewContext(ctx context.Context, a app.Row) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the App attached by the admission middleware. ok is
// false if no App has been resolved (the request never reached admission,
// or admission failed before attaching one).
func FromContext(ctx context.Context) (app.Row, bool) {
	a, ok := ctx.Value(ctxKey{}).(app.Row)
	return a, ok
}
