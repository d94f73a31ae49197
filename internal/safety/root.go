// Package safety confines tool execution and reports tool-level failures.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToolError is a machine-readable error body surfaced to the model as tool output.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool turns small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// ResolveRoot returns the absolute, symlink-resolved directory that tool code
// runs in. An empty dir means the current working directory. The directory is
// created when missing.
func ResolveRoot(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs(%s): %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create sandbox root: %w", err)
	}
	// Resolve symlinks so the child sees the same path we log.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat sandbox root: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("sandbox root %s is not a directory", abs)
	}
	return abs, nil
}
