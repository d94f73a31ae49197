// Package sysprompt reloads the system instruction when its source changes.
package sysprompt

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/petasbytes/llamachat/internal/transcript"
)

// Source is a mutable system instruction.
type Source interface {
	Read() (string, error)
	LastModified() (time.Time, error)
}

// FileSource reads the instruction from a file and uses its mtime as marker.
type FileSource struct {
	Path string
}

func (f FileSource) Read() (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f FileSource) LastModified() (time.Time, error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Watcher tracks the last observed marker of a Source.
// Poll is called once per completed generation, never mid-stream.
type Watcher struct {
	src    Source
	last   time.Time
	logger *slog.Logger
}

func NewWatcher(src Source, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{src: src, logger: logger}
}

// Load reads the initial instruction and records its marker. Unlike Poll,
// failures here are returned: there is no previous instruction to fall back on.
func (w *Watcher) Load() (string, error) {
	mod, err := w.src.LastModified()
	if err != nil {
		return "", fmt.Errorf("sysprompt: stat: %w", err)
	}
	text, err := w.src.Read()
	if err != nil {
		return "", fmt.Errorf("sysprompt: read: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("sysprompt: source is empty")
	}
	w.last = mod
	return text, nil
}

// Poll returns a replacement system turn when the source marker is newer
// than the last one observed. Unreadable or empty sources report no change
// and are retried on the next poll.
func (w *Watcher) Poll() (transcript.Turn, bool) {
	mod, err := w.src.LastModified()
	if err != nil {
		w.logger.Warn("system prompt source unavailable", "err", err)
		return transcript.Turn{}, false
	}
	if !mod.After(w.last) {
		return transcript.Turn{}, false
	}
	text, err := w.src.Read()
	if err != nil {
		w.logger.Warn("system prompt reload failed", "err", err)
		return transcript.Turn{}, false
	}
	if strings.TrimSpace(text) == "" {
		w.logger.Warn("system prompt source is empty; keeping previous")
		return transcript.Turn{}, false
	}
	w.last = mod
	w.logger.Info("system prompt reloaded", "modified", mod)
	return transcript.Turn{Role: transcript.RoleSystem, Content: text}, true
}
