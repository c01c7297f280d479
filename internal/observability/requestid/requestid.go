// Package requestid carries a correlation id through a context so outbound
// backend calls and log lines for one resolution pass share it.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used to propagate the id.
const Header = "X-Request-ID"

type ctxKey struct{}

// With returns a copy of ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id stored in ctx, if any.
func From(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// New returns a fresh random id.
func New() string { return uuid.NewString() }

// Ensure returns ctx unchanged when it already carries an id, otherwise a
// copy carrying a fresh one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return With(ctx, id), id
}
