package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAndFrom(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, From(ctx))
	assert.Equal(t, ctx, With(ctx, ""))

	ctx = With(ctx, "abc")
	assert.Equal(t, "abc", From(ctx))
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, From(ctx))

	same, again := Ensure(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, ctx, same)
}
