package sandbox_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/llamachat/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, opts ...sandbox.Option) *sandbox.PythonSession {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	opts = append([]sandbox.Option{sandbox.WithPython("python3"), sandbox.WithWorkDir(t.TempDir())}, opts...)
	s, err := sandbox.NewPythonSession(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExecute_PrintAndStatePersists(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, "print(1)")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = s.Execute(ctx, "x = 41")
	require.NoError(t, err)
	assert.Equal(t, "No output", out)

	out, err = s.Execute(ctx, "x + 1")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestExecute_ExceptionIsOutput(t *testing.T) {
	s := newSession(t)
	out, err := s.Execute(context.Background(), "1/0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error during execution: ZeroDivisionError"), out)

	// The interpreter survives.
	out, err = s.Execute(context.Background(), "print('ok')")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestExecute_InputIsEmpty(t *testing.T) {
	s := newSession(t)
	out, err := s.Execute(context.Background(), "input()")
	require.NoError(t, err)
	assert.Contains(t, out, "EOFError")
}

func TestExecute_RunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	s := newSession(t, sandbox.WithWorkDir(dir))
	_, err := s.Execute(context.Background(), "open('f.txt', 'w').write('hi')")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(s.Dir(), "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(b))
}

func TestExecute_TimeoutRestartsInterpreter(t *testing.T) {
	s := newSession(t, sandbox.WithTimeout(300*time.Millisecond))
	ctx := context.Background()

	_, err := s.Execute(ctx, "y = 7")
	require.NoError(t, err)

	_, err = s.Execute(ctx, "import time\ntime.sleep(10)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	out, err := s.Execute(ctx, "'y' in globals()")
	require.NoError(t, err)
	assert.Equal(t, "False\n", out)
}

func TestExecute_Cancelled(t *testing.T) {
	s := newSession(t, sandbox.WithTimeout(0))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := s.Execute(ctx, "import time\ntime.sleep(10)")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_InterpreterExit(t *testing.T) {
	s := newSession(t)
	out, err := s.Execute(context.Background(), "import os\nos._exit(3)")
	require.Error(t, err, out)

	out, err = s.Execute(context.Background(), "print(2)")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestExecute_AfterClose(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := s.Execute(context.Background(), "print(1)")
	require.ErrorIs(t, err, sandbox.ErrClosed)
}

func TestNewPythonSession_BadInterpreter(t *testing.T) {
	s, err := sandbox.NewPythonSession(sandbox.WithPython("definitely-not-python"), sandbox.WithWorkDir(t.TempDir()))
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "print(1)")
	require.Error(t, err)
}

func TestExecute_ShellOutputDoesNotCorruptReplies(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, "import os\nos.system('echo hi')")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = s.Execute(ctx, "print(2)")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = s.Execute(ctx, "import sys\nprint('raw', file=sys.__stdout__)\nprint(3)")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestExecute_ChildCannotReadRequests(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, "import subprocess\nsubprocess.run(['cat']).returncode")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = s.Execute(ctx, "print(4)")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestExecute_MalformedReplyRestartsInterpreter(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, "z = 1")
	require.NoError(t, err)

	_, err = s.Execute(ctx, "import __main__\n__main__._replies.write('junk\\n')\n__main__._replies.flush()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reply")

	out, err := s.Execute(ctx, "print('z' in globals())")
	require.NoError(t, err)
	assert.Equal(t, "False\n", out)
}
