package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/llamachat/internal/completion"
	"github.com/petasbytes/llamachat/internal/config"
	"github.com/petasbytes/llamachat/internal/controller"
	"github.com/petasbytes/llamachat/internal/mirror"
	"github.com/petasbytes/llamachat/internal/operator"
	"github.com/petasbytes/llamachat/internal/sandbox"
	"github.com/petasbytes/llamachat/internal/sysprompt"
	"github.com/petasbytes/llamachat/internal/telemetry"
	"github.com/petasbytes/llamachat/internal/transcript"
	"github.com/petasbytes/llamachat/memory"
	"github.com/petasbytes/llamachat/tools"
	"golang.org/x/sync/errgroup"
)

// runSession wires the collaborators and drives one conversation to the end.
// Interrupts end the session cleanly and are not reported as errors.
func runSession(ctx context.Context, cfg *config.Config, prompt string, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	out, err := mirror.OpenTo(stdout, cfg.Session.LogFile)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("closing session log", "err", err)
		}
	}()

	py, err := sandbox.NewPythonSession(
		sandbox.WithPython(cfg.Sandbox.Python),
		sandbox.WithWorkDir(cfg.Sandbox.WorkDir),
		sandbox.WithTimeout(cfg.Sandbox.ExecTimeout),
		sandbox.WithLogger(logger),
	)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer py.Close() //nolint:errcheck
	router := tools.NewRouter(py, logger, tools.Registry()...)

	var ctrlOpts []controller.Option
	system := cfg.Session.SystemPrompt
	if path := cfg.Session.SystemPromptFile; path != "" {
		w := sysprompt.NewWatcher(sysprompt.FileSource{Path: path}, logger)
		if system, err = w.Load(); err != nil {
			return &ConfigError{Err: err}
		}
		ctrlOpts = append(ctrlOpts, controller.WithWatcher(w))
	}
	if system == "" {
		system = defaultSystemPrompt(router.Names())
	}

	client := completion.NewClient(cfg.Server.URL,
		completion.WithCachePrompt(*cfg.Server.CachePrompt),
		completion.WithNPredict(cfg.Server.NPredict),
		completion.WithLogger(logger),
	)

	ctrlOpts = append(ctrlOpts, controller.WithOutput(out.Writer()), controller.WithLogger(logger))
	ctrl := controller.New(transcript.New(system), controller.Config{
		Mode:          cfg.Mode(),
		Stream:        *cfg.Server.Stream,
		Verbose:       *cfg.Session.Verbose,
		MaxTurns:      cfg.Session.MaxTurns,
		InitialPrompt: prompt,
		ResetOnReload: *cfg.Session.ResetOnReload,
	}, client, router, operator.NewConsole(stdin, out.Writer()), ctrlOpts...)

	logger.Debug("session starting",
		"mode", cfg.Mode(), "url", cfg.Server.URL, "stream", *cfg.Server.Stream,
		"workdir", py.Dir(), "tools", router.Names())

	runErr := run(ctx, ctrl, out.Writer())
	finish(cfg, ctrl, runErr, logger)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// run steps the controller until it terminates or a signal arrives.
func run(ctx context.Context, ctrl *controller.Controller, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-sigch:
			fmt.Fprintln(out, "\nExiting...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return ctrl.Run(gctx)
	})
	return g.Wait()
}

// finish records how the session ended. It runs on every exit path after
// the controller has stopped.
func finish(cfg *config.Config, ctrl *controller.Controller, runErr error, logger *slog.Logger) {
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	turns := ctrl.Turns()
	telemetry.EmitSessionEnd(ctrl.State().String(), turns, errStr)

	if cfg.Session.Dump == "" {
		return
	}
	if err := memory.SaveTranscript(cfg.Session.Dump, memory.Snapshot{
		Mode:  cfg.Mode().String(),
		State: ctrl.State().String(),
		Error: errStr,
		Turns: turns,
	}); err != nil {
		logger.Warn("failed to write transcript dump", "path", cfg.Session.Dump, "err", err)
	}
}

// defaultSystemPrompt declares the ipython environment and any built-in
// tools in the header layout Llama 3.1 was trained on.
func defaultSystemPrompt(toolNames []string) string {
	if len(toolNames) == 0 {
		return config.DefaultSystemPrompt
	}
	const env = "Environment: ipython\n"
	rest := strings.TrimPrefix(config.DefaultSystemPrompt, env)
	return env + "Tools: " + strings.Join(toolNames, ", ") + "\n" + rest
}
