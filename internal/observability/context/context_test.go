package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "cli")
	assert.Equal(t, "cli", ActorFromContext(ctx))
}

func TestLedgerScope(t *testing.T) {
	ctx := WithStudentIDs(context.Background(), "7", "9")
	ctx = WithPeriod(ctx, "2024-04")
	assert.Equal(t, []string{"7", "9"}, StudentIDsFromContext(ctx))
	assert.Equal(t, "2024-04", PeriodFromContext(ctx))

	assert.Equal(t, ctx, WithStudentIDs(ctx))
	assert.Nil(t, StudentIDsFromContext(context.Background()))
}
