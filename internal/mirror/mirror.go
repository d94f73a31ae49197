// Package mirror duplicates session output to stdout and a log file.
package mirror

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Mirror tees writes to a primary stream and, optionally, a log file.
// Close releases the file and is safe to call on every exit path.
type Mirror struct {
	w    io.Writer
	file *os.File
	once sync.Once
	err  error
}

// Open mirrors stdout into path, appending. An empty path disables the file.
func Open(path string) (*Mirror, error) {
	return OpenTo(os.Stdout, path)
}

// OpenTo is Open with an explicit primary stream.
func OpenTo(primary io.Writer, path string) (*Mirror, error) {
	if path == "" {
		return &Mirror{w: primary}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mirror: open %s: %w", path, err)
	}
	return &Mirror{w: io.MultiWriter(primary, f), file: f}, nil
}

// Writer returns the tee. It must not be used after Close.
func (m *Mirror) Writer() io.Writer { return m.w }

func (m *Mirror) Write(p []byte) (int, error) { return m.w.Write(p) }

func (m *Mirror) Close() error {
	m.once.Do(func() {
		if m.file == nil {
			return
		}
		if err := m.file.Sync(); err != nil {
			m.err = err
		}
		if err := m.file.Close(); err != nil && m.err == nil {
			m.err = err
		}
	})
	return m.err
}
