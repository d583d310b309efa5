// Package reqid attaches a per-request trace id to a context.Context, the
// same key-in-context shape reva's pkg/reqid uses, generating the id with
// google/uuid instead of reva's internal generator.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// New returns a fresh trace id.
func New() string {
	return uuid.NewString()
}

// ContextSetReqID stores a trace id in the context.
func ContextSetReqID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// ContextGetReqID returns the trace id stored in the context, if any.
func ContextGetReqID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceKey{}).(string)
	return id, ok
}
