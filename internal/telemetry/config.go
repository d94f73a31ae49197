package telemetry

import (
	"os"
	"path/filepath"
)

const (
	envObserve      = "LLAMACHAT_OBSERVE_JSON"
	envArtifactsDir = "LLAMACHAT_ARTIFACTS_DIR"

	defaultArtifactsDir = ".llamachat"
	eventsFile          = "events.jsonl"
)

// ObserveEnabled reports whether JSONL emission is on. The environment is
// read on every call so tests can toggle it with t.Setenv.
func ObserveEnabled() bool {
	return os.Getenv(envObserve) == "1"
}

// ArtifactsDir returns the directory that receives events.jsonl.
func ArtifactsDir() string {
	if d := os.Getenv(envArtifactsDir); d != "" {
		return d
	}
	return defaultArtifactsDir
}

// EventsPath returns the full path of the JSONL event log.
func EventsPath() string {
	return filepath.Join(ArtifactsDir(), eventsFile)
}
