package telemetry_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/llamachat/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnID_RoundTrip(t *testing.T) {
	ctx := telemetry.WithTurnID(context.Background(), "turn-123")
	got, ok := telemetry.TurnIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "turn-123", got)
}

func TestTurnID_EmptyIDRejectedOnRead(t *testing.T) {
	ctx := telemetry.WithTurnID(context.Background(), "")
	got, ok := telemetry.TurnIDFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestTurnID_MissingValue(t *testing.T) {
	got, ok := telemetry.TurnIDFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestTurnID_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	child := telemetry.WithTurnID(parent, "t1")
	cancel()

	select {
	case <-child.Done():
	case <-time.After(100 * time.Millisecond):
		require.FailNow(t, "child context did not observe parent cancellation")
	}
}

func TestTurnID_LastWriteWins(t *testing.T) {
	ctx := telemetry.WithTurnID(telemetry.WithTurnID(context.Background(), "t1"), "t2")
	got, ok := telemetry.TurnIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t2", got)
}

func TestNewTurnID_CarriesSequence(t *testing.T) {
	a, b := telemetry.NewTurnID(1), telemetry.NewTurnID(2)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "turn-"), a)
	assert.True(t, strings.HasSuffix(b, "-2"), b)
}
