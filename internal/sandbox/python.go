// Package sandbox executes model-issued code in a persistent Python process.
package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	_ "embed"

	"github.com/petasbytes/llamachat/internal/safety"
	"github.com/tidwall/gjson"
)

//go:embed data/repl.py
var replPy string

// DefaultTimeout bounds a single cell.
const DefaultTimeout = 60 * time.Second

const (
	noOutput    = "No output"
	execFailure = "Error during execution: "
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("sandbox: session closed")

// PythonSession keeps one interpreter alive so variables survive between
// cells. Cells run one at a time. A timed out or cancelled cell kills the
// interpreter; the next call starts a fresh one with an empty namespace.
type PythonSession struct {
	bin     string
	dir     string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	proc   *process
	closed bool
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

type Option func(*PythonSession)

// WithPython sets the interpreter binary. Empty keeps the resolved default.
func WithPython(bin string) Option {
	return func(s *PythonSession) {
		if bin != "" {
			s.bin = bin
		}
	}
}

// WithWorkDir sets the directory cells run in.
func WithWorkDir(dir string) Option {
	return func(s *PythonSession) { s.dir = dir }
}

// WithTimeout bounds each cell; 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *PythonSession) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *PythonSession) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewPythonSession prepares a session. The interpreter is started lazily on
// the first Execute.
func NewPythonSession(opts ...Option) (*PythonSession, error) {
	s := &PythonSession{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.bin == "" {
		s.bin = resolvePythonBin()
	}
	root, err := safety.ResolveRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	s.dir = root
	return s, nil
}

// Dir returns the resolved working directory.
func (s *PythonSession) Dir() string { return s.dir }

func resolvePythonBin() string {
	// On Windows python3 may be a store stub that exits non-zero.
	if path, err := exec.LookPath("python3"); err == nil {
		if exec.Command(path, "--version").Run() == nil {
			return "python3"
		}
	}
	return "python"
}

// Execute runs code and returns its captured output. Python exceptions are
// part of the output, not errors; a non-nil error means the interpreter
// itself could not run the cell.
func (s *PythonSession) Execute(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.proc == nil {
		p, err := s.start()
		if err != nil {
			return "", err
		}
		s.proc = p
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := json.Marshal(struct {
		Code string `json:"code"`
	}{code})
	if err != nil {
		return "", err
	}

	type result struct {
		line []byte
		err  error
	}
	done := make(chan result, 1)
	p := s.proc
	go func() {
		if _, err := p.stdin.Write(append(req, '\n')); err != nil {
			done <- result{err: fmt.Errorf("sandbox: write: %w", err)}
			return
		}
		line, err := p.stdout.ReadBytes('\n')
		done <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		s.kill()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("sandbox: execution timed out after %s", s.timeout)
		}
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			s.kill()
			if errors.Is(r.err, io.EOF) {
				return "", errors.New("sandbox: interpreter exited")
			}
			return "", r.err
		}
		out, err := decodeReply(r.line)
		if err != nil {
			// The reply stream is out of step; never reuse this interpreter.
			s.kill()
			return "", err
		}
		return out, nil
	}
}

func decodeReply(line []byte) (string, error) {
	if !gjson.ValidBytes(line) {
		return "", fmt.Errorf("sandbox: malformed reply %q", line)
	}
	reply := gjson.ParseBytes(line)
	if msg := reply.Get("error").String(); msg != "" {
		return execFailure + msg, nil
	}
	if out := reply.Get("output").String(); out != "" {
		return out, nil
	}
	return noOutput, nil
}

func (s *PythonSession) start() (*process, error) {
	cmd := exec.Command(s.bin, "-u", "-c", replPy)
	cmd.Dir = s.dir
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sandbox: start %s: %w", s.bin, err)
	}
	s.logger.Debug("python session started", "bin", s.bin, "dir", s.dir, "pid", cmd.Process.Pid)
	return &process{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// kill stops the interpreter. Callers hold mu.
func (s *PythonSession) kill() {
	if s.proc == nil {
		return
	}
	p := s.proc
	s.proc = nil
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	s.logger.Debug("python session stopped", "pid", p.cmd.Process.Pid)
}

// Close stops the interpreter. It is safe to call more than once.
func (s *PythonSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.kill()
	return nil
}
