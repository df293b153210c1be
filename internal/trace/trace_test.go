package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSpanIDIncrementsWithinRequest(t *testing.T) {
	ctx := WithRequestAndSpan(context.Background(), "req-1", 0)

	reqID, span := NextSpanID(ctx)
	assert.Equal(t, "req-1", reqID)
	assert.Equal(t, "1", span)

	_, span = NextSpanID(ctx)
	assert.Equal(t, "2", span)
}

func TestCurrentSpanIDDoesNotIncrement(t *testing.T) {
	ctx := WithRequestAndSpan(context.Background(), "req-1", 0)
	assert.Equal(t, "0", CurrentSpanID(ctx))

	NextSpanID(ctx)
	NextSpanID(ctx)

	assert.Equal(t, "2", CurrentSpanID(ctx))
	assert.Equal(t, "2", CurrentSpanID(ctx), "reading the span must not advance it")
}

func TestSpanHelpersWithoutTrace(t *testing.T) {
	assert.Equal(t, "0", CurrentSpanID(context.Background()))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	reqID, span := NextSpanID(context.Background())
	assert.NotEmpty(t, reqID)
	assert.Equal(t, "1", span)
}
