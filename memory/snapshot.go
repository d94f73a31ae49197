package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/petasbytes/llamachat/internal/transcript"
)

// Snapshot is the persisted view of a finished session.
type Snapshot struct {
	SavedAt time.Time         `json:"saved_at"`
	Mode    string            `json:"mode"`
	State   string            `json:"state"`
	Error   string            `json:"error,omitempty"`
	Turns   []transcript.Turn `json:"turns"`
}

// SaveTranscript writes s to path as indented JSON. The file is replaced
// atomically so a crash mid-write never leaves a truncated dump.
func SaveTranscript(path string, s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	b, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memory: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".transcript-*.json")
	if err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("memory: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
