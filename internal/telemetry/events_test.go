package telemetry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petasbytes/llamachat/internal/telemetry"
	"github.com/petasbytes/llamachat/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitTurn_FeaturesOnly(t *testing.T) {
	dir := observe(t)
	ctx := telemetry.WithTurnID(context.Background(), "turn-xyz")
	content := "secret plan\nline two"

	telemetry.EmitTurn(ctx, 2, transcript.Turn{Role: transcript.RoleAssistant, Content: content})

	m := readJSONL(t, dir)[0]
	assert.Equal(t, "turn_appended", m["event"])
	assert.Equal(t, "turn-xyz", m["turn_id"])
	assert.Equal(t, "assistant", m["role"])
	assert.Equal(t, float64(2), m["index"])

	f := m["features"].(map[string]any)
	assert.Equal(t, float64(len(content)), f["bytes"])
	assert.Equal(t, float64(4), f["words"])
	assert.Equal(t, float64(2), f["lines"])

	raw, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret plan", "raw turn text leaked into events.jsonl")
}

func TestEmitCompletion_ErrorField(t *testing.T) {
	dir := observe(t)
	telemetry.EmitCompletion(context.Background(), true, 10, 0, 1500*time.Millisecond, errors.New("boom").Error())
	telemetry.EmitCompletion(context.Background(), false, 10, 5, time.Millisecond, "")

	events := readJSONL(t, dir)
	require.Len(t, events, 2)
	assert.Equal(t, "boom", events[0]["error"])
	assert.Equal(t, float64(1500), events[0]["duration_ms"])
	assert.Equal(t, true, events[0]["stream"])

	v, ok := events[1]["error"]
	assert.True(t, ok, "error key should be present")
	assert.Nil(t, v)
}

func TestEmitSessionEnd_Summary(t *testing.T) {
	dir := observe(t)
	turns := []transcript.Turn{
		{Role: transcript.RoleSystem, Content: "s"},
		{Role: transcript.RoleUser, Content: "u"},
		{Role: transcript.RoleAssistant, Content: "aa"},
	}
	telemetry.EmitSessionEnd("terminated", turns, "")

	m := readJSONL(t, dir)[0]
	assert.Equal(t, float64(3), m["turns"])
	assert.Equal(t, float64(4), m["bytes"])
	assert.Equal(t, "terminated", m["state"])

	byRole := m["by_role"].(map[string]any)
	assert.Equal(t, float64(1), byRole["assistant"])
	assert.NotContains(t, byRole, "tool")
}
