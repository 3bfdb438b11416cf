package telemetry

import "context"

type contextKey int

const requestLabelsKey contextKey = iota

// RequestLabels holds the identity labels used on the gateway-edge request
// metrics. It is allocated once per request by the Metrics middleware, before
// the App has been resolved, and filled in later by the admission middleware
// — both hold the same pointer, so the mutation is visible once the handler
// chain unwinds and the edge metrics are recorded.
type RequestLabels struct {
	UserID string
	APIKey string
}

// WithRequestLabels attaches a fresh RequestLabels to ctx and returns both
// the derived context and a pointer downstream middleware can populate.
func WithRequestLabels(ctx context.Context) (context.Context, *RequestLabels) {
	labels := &RequestLabels{UserID: "-", APIKey: "-"}
	return context.WithValue(ctx, requestLabelsKey, labels), labels
}

// RequestLabelsFromContext returns the RequestLabels attached to ctx, or nil
// if none was attached.
func RequestLabelsFromContext(ctx context.Context) *RequestLabels {
	v, _ := ctx.Value(requestLabelsKey).(*RequestLabels)
	return v
}
