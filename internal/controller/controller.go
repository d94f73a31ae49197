package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/petasbytes/llamachat/internal/completion"
	"github.com/petasbytes/llamachat/internal/telemetry"
	"github.com/petasbytes/llamachat/internal/template"
	"github.com/petasbytes/llamachat/internal/toolcall"
	"github.com/petasbytes/llamachat/internal/transcript"
)

//go:generate go tool mockgen -source=controller.go -destination=mocks_test.go -package=controller_test

// Completer produces the content of the open turn.
type Completer interface {
	Complete(ctx context.Context, req completion.Request, onFragment completion.FragmentFunc) (transcript.Turn, error)
}

// Executor runs tool code and returns its textual result. A returned error
// means the sandbox itself failed; it is reported to the model, not fatal.
type Executor interface {
	Execute(ctx context.Context, code string) (string, error)
}

// Operator supplies human input. io.EOF ends the session.
type Operator interface {
	ReadLine(ctx context.Context) (string, error)
}

// Watcher reports system prompt replacements.
type Watcher interface {
	Poll() (transcript.Turn, bool)
}

// Config is fixed for the lifetime of a Controller.
type Config struct {
	Mode    Mode
	Stream  bool
	Verbose bool
	// MaxTurns bounds the number of completions; 0 means unbounded.
	MaxTurns int
	// InitialPrompt, when set, is used as the first user turn instead of
	// asking the operator.
	InitialPrompt string
	// ResetOnReload drops the conversation when the system prompt is
	// reloaded instead of keeping it under the new prompt.
	ResetOnReload bool
}

// Controller drives the conversation one transition at a time. It is the
// only writer of the transcript and keeps at most one completion in flight.
type Controller struct {
	cfg      Config
	tr       *transcript.Transcript
	client   Completer
	sandbox  Executor
	operator Operator
	watcher  Watcher
	out      io.Writer
	logger   *slog.Logger

	state       State
	err         error
	started     bool
	usedInitial bool
	pending     toolcall.Span
	generations int
	turnID      string
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithWatcher enables system prompt hot reload.
func WithWatcher(w Watcher) Option {
	return func(c *Controller) { c.watcher = w }
}

// WithOutput sets where generated text and tool results are displayed.
func WithOutput(w io.Writer) Option {
	return func(c *Controller) {
		if w != nil {
			c.out = w
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a controller over tr, which must start with a system turn.
// operator may be nil when the session never needs human input.
func New(tr *transcript.Transcript, cfg Config, client Completer, sandbox Executor, operator Operator, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		tr:       tr,
		client:   client,
		sandbox:  sandbox,
		operator: operator,
		out:      io.Discard,
		logger:   slog.Default(),
		state:    AwaitUser,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if cfg.Mode == Autonomous {
		c.state = Generating
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Err returns the error that terminated the session, if any.
func (c *Controller) Err() error { return c.err }

// Turns returns a snapshot of the transcript.
func (c *Controller) Turns() []transcript.Turn { return c.tr.Turns() }

// Run steps until Terminated. Cancellation of ctx is observed between
// transitions and by the collaborators; it surfaces as ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	for c.state != Terminated {
		c.Step(ctx)
	}
	return c.err
}

// Step performs a single transition.
func (c *Controller) Step(ctx context.Context) {
	if c.state == Terminated {
		return
	}
	if err := ctx.Err(); err != nil {
		c.terminate(err)
		return
	}
	if !c.started {
		c.started = true
		if err := c.begin(); err != nil {
			c.terminate(err)
			return
		}
	}

	switch c.state {
	case AwaitUser:
		c.awaitUser(ctx)
	case Generating:
		c.generate(ctx)
	case CheckTool:
		c.checkTool()
	case ExecutingTool:
		c.executeTool(ctx)
	case AwaitNext:
		c.awaitNext()
	}
}

// begin seeds the transcript for autonomous sessions, whose first turn is
// synthetic.
func (c *Controller) begin() error {
	if c.cfg.Mode != Autonomous {
		return nil
	}
	if c.cfg.InitialPrompt != "" {
		c.usedInitial = true
		fmt.Fprintln(c.out, c.cfg.InitialPrompt)
		if err := c.commit(context.Background(), transcript.Turn{Role: transcript.RoleUser, Content: c.cfg.InitialPrompt}); err != nil {
			return err
		}
		return c.tr.Open(transcript.RoleAssistant)
	}
	return c.tr.Open(transcript.RoleUser)
}

func (c *Controller) awaitUser(ctx context.Context) {
	var line string
	if c.cfg.InitialPrompt != "" && !c.usedInitial {
		c.usedInitial = true
		line = c.cfg.InitialPrompt
		fmt.Fprintln(c.out, line)
	} else {
		if c.operator == nil {
			c.terminate(errors.New("controller: no operator to read input from"))
			return
		}
		var err error
		line, err = c.operator.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			c.logger.Info("operator input closed")
			c.terminate(nil)
			return
		}
		if err != nil {
			c.terminate(err)
			return
		}
	}
	if line == "" {
		return
	}

	if err := c.commit(ctx, transcript.Turn{Role: transcript.RoleUser, Content: line}); err != nil {
		c.terminate(err)
		return
	}
	if err := c.tr.Open(transcript.RoleAssistant); err != nil {
		c.terminate(err)
		return
	}
	c.state = Generating
}

func (c *Controller) generate(ctx context.Context) {
	if c.cfg.MaxTurns > 0 && c.generations >= c.cfg.MaxTurns {
		c.logger.Info("turn limit reached", "max_turns", c.cfg.MaxTurns)
		c.terminate(nil)
		return
	}
	c.generations++
	c.turnID = telemetry.NewTurnID(c.generations)
	ctx = telemetry.WithTurnID(ctx, c.turnID)

	if c.cfg.Verbose {
		if err := c.echoLastTurn(); err != nil {
			c.terminate(err)
			return
		}
	}

	open := c.tr.Last()
	prompt := template.Render(c.tr.Turns())
	c.logger.Debug("requesting completion", "turn_id", c.turnID, "role", open.Role, "prompt_bytes", len(prompt))

	start := time.Now()
	turn, err := c.client.Complete(ctx, completion.Request{
		Prompt: prompt,
		Role:   open.Role,
		Stream: c.cfg.Stream,
	}, c.display)
	if err != nil {
		telemetry.EmitCompletion(ctx, c.cfg.Stream, len(prompt), 0, time.Since(start), err.Error())
		fmt.Fprintln(c.out)
		c.terminate(err)
		return
	}
	telemetry.EmitCompletion(ctx, c.cfg.Stream, len(prompt), len(turn.Content), time.Since(start), "")
	fmt.Fprintln(c.out)

	// The server may stop immediately; record that as an explicitly closed turn.
	content := turn.Content
	if content == "" {
		content = template.EndOfTurn
	}
	filled, err := c.tr.Fill(content)
	if err != nil {
		c.terminate(err)
		return
	}
	telemetry.EmitTurn(ctx, c.tr.Len()-1, filled)

	c.pollWatcher(ctx)
	c.state = CheckTool
}

func (c *Controller) checkTool() {
	last := c.tr.Last()
	if last.Role == transcript.RoleAssistant {
		if span, ok := toolcall.Extract(last.Content); ok {
			c.pending = span
			c.state = ExecutingTool
			return
		}
	}
	c.state = AwaitNext
}

func (c *Controller) executeTool(ctx context.Context) {
	ctx = telemetry.WithTurnID(ctx, c.turnID)
	code := c.pending.Code
	c.pending = toolcall.Span{}

	start := time.Now()
	var (
		out string
		err error
	)
	if c.sandbox == nil {
		err = errors.New("no execution sandbox configured")
	} else {
		out, err = c.sandbox.Execute(ctx, code)
	}
	errStr := ""
	if err != nil {
		if ctx.Err() != nil {
			c.terminate(ctx.Err())
			return
		}
		c.logger.Warn("sandbox execution failed", "turn_id", c.turnID, "err", err)
		errStr = err.Error()
		out = "Exception: " + err.Error()
	}
	if out == "" {
		out = "No output"
	}
	telemetry.EmitToolExec(ctx, len(code), len(out), time.Since(start), errStr)
	fmt.Fprintln(c.out, out)

	if err := c.commit(ctx, transcript.Turn{Role: transcript.RoleTool, Content: out}); err != nil {
		c.terminate(err)
		return
	}
	if err := c.tr.Open(transcript.RoleAssistant); err != nil {
		c.terminate(err)
		return
	}
	c.state = Generating
}

func (c *Controller) awaitNext() {
	switch c.cfg.Mode {
	case Interactive:
		c.state = AwaitUser
	case Autonomous:
		next := transcript.RoleAssistant
		if c.tr.LastNonTool().Role == transcript.RoleAssistant {
			next = transcript.RoleUser
		}
		if err := c.tr.Open(next); err != nil {
			c.terminate(err)
			return
		}
		c.state = Generating
	default:
		c.terminate(nil)
	}
}

func (c *Controller) pollWatcher(ctx context.Context) {
	if c.watcher == nil {
		return
	}
	turn, ok := c.watcher.Poll()
	if !ok {
		return
	}
	apply := c.tr.ReplaceSystem
	if c.cfg.ResetOnReload {
		apply = c.tr.Reset
	}
	if err := apply(turn.Content); err != nil {
		c.logger.Warn("ignoring system prompt reload", "err", err)
		return
	}
	telemetry.EmitSystemReload(ctx, turn.Content)
	c.logger.Info("system prompt replaced", "turn_id", c.turnID, "reset", c.cfg.ResetOnReload)
}

func (c *Controller) commit(ctx context.Context, turn transcript.Turn) error {
	if err := c.tr.Append(turn); err != nil {
		return err
	}
	telemetry.EmitTurn(ctx, c.tr.Len()-1, turn)
	return nil
}

// echoLastTurn redisplays the newest committed turn in wire format.
func (c *Controller) echoLastTurn() error {
	turns := c.tr.Turns()
	if c.tr.HasOpen() {
		turns = turns[:len(turns)-1]
	}
	text := template.Render(turns)
	off, err := template.LocateLastTurn(text)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, text[off:])
	return nil
}

func (c *Controller) display(fragment string) {
	_, _ = io.WriteString(c.out, fragment)
}

func (c *Controller) terminate(err error) {
	c.err = err
	c.state = Terminated
	switch {
	case err == nil:
		c.logger.Debug("session finished", "turns", c.tr.Len())
	case errors.Is(err, context.Canceled):
		c.logger.Info("session interrupted", "turns", c.tr.Len())
	default:
		c.logger.Error("session terminated", "err", err, "turns", c.tr.Len())
	}
}
