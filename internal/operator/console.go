// Package operator reads human input for interactive sessions.
package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Prompt is shown before each line when input comes from a terminal.
const Prompt = "Prompt: "

// Console reads lines from an input stream. A single goroutine scans the
// input so ReadLine can return on cancellation without losing lines.
type Console struct {
	in     io.Reader
	out    io.Writer
	prompt string

	once  sync.Once
	lines chan string
	err   error
}

// NewConsole reads from in and writes the prompt label to out. The label is
// shown only when in is a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: in, out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.prompt = Prompt
	}
	return c
}

// WithPrompt forces a prompt label regardless of the input kind.
func (c *Console) WithPrompt(p string) *Console {
	c.prompt = p
	return c
}

func (c *Console) start() {
	c.lines = make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
		c.err = scanner.Err()
		close(c.lines)
	}()
}

// ReadLine returns the next line without its terminator. It returns io.EOF
// once input is exhausted and ctx.Err() when ctx is cancelled first.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.once.Do(c.start)
	if c.prompt != "" && c.out != nil {
		fmt.Fprint(c.out, c.prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			if c.err != nil {
				return "", fmt.Errorf("operator: read input: %w", c.err)
			}
			return "", io.EOF
		}
		return line, nil
	}
}
