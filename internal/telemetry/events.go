package telemetry

import (
	"context"
	"time"

	"github.com/petasbytes/llamachat/internal/metrics"
	"github.com/petasbytes/llamachat/internal/transcript"
)

func featureFields(s string) map[string]any {
	f := metrics.CountFeatures(s)
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}

// EmitTurn records a turn committed to the transcript at index.
func EmitTurn(ctx context.Context, index int, turn transcript.Turn) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	Emit("turn_appended", map[string]any{
		"turn_id":  turnID,
		"index":    index,
		"role":     string(turn.Role),
		"features": featureFields(turn.Content),
	})
}

// EmitCompletion records one completion call. errStr is empty on success.
func EmitCompletion(ctx context.Context, stream bool, promptBytes, contentBytes int, d time.Duration, errStr string) {
	turnID, _ := TurnIDFromContext(ctx)
	fields := map[string]any{
		"turn_id":       turnID,
		"stream":        stream,
		"prompt_bytes":  promptBytes,
		"content_bytes": contentBytes,
		"duration_ms":   d.Milliseconds(),
		"error":         nil,
	}
	if errStr != "" {
		fields["error"] = errStr
	}
	Emit("completion", fields)
}

// EmitToolExec records one sandbox execution.
func EmitToolExec(ctx context.Context, inputSize, outputSize int, d time.Duration, errStr string) {
	turnID, _ := TurnIDFromContext(ctx)
	fields := map[string]any{
		"turn_id":     turnID,
		"duration_ms": d.Milliseconds(),
		"input_size":  inputSize,
		"output_size": outputSize,
		"error":       nil,
	}
	if errStr != "" {
		fields["error"] = errStr
	}
	Emit("tool_exec", fields)
}

// EmitSystemReload records a hot reload of the system instruction.
func EmitSystemReload(ctx context.Context, content string) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	Emit("system_reload", map[string]any{
		"turn_id":  turnID,
		"features": featureFields(content),
	})
}

// EmitSessionEnd records the final state of a session.
func EmitSessionEnd(state string, turns []transcript.Turn, errStr string) {
	if !ObserveEnabled() {
		return
	}
	s := metrics.SummarizeTurns(turns)
	fields := map[string]any{
		"state":   state,
		"turns":   s.Turns,
		"by_role": s.ByRole,
		"bytes":   s.Bytes,
		"error":   nil,
	}
	if errStr != "" {
		fields["error"] = errStr
	}
	Emit("session_end", fields)
}
