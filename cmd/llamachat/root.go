package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/petasbytes/llamachat/internal/config"
	"github.com/petasbytes/llamachat/internal/controller"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath       string
	url              string
	systemPrompt     string
	systemPromptFile string
	prompt           string
	interactive      bool
	autonomous       bool
	stream           bool
	verbose          bool
	logFile          string
	dump             string
	resetOnReload    bool
	maxTurns         int
	python           string
	workdir          string
	execTimeout      time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "llamachat",
		Short: "Chat with a llama.cpp server that can run Python",
		Long: `llamachat drives a Llama 3.1 model served by llama.cpp through a
multi-turn conversation. Code the model emits between <|python_tag|> and
<|eom_id|> runs in a persistent Python session and the output is fed back
as an ipython turn.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return &ConfigError{Err: err}
			}
			if err := runSession(cmd.Context(), cfg, opts.prompt, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return &sessionError{err: err}
			}
			return nil
		},
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to the YAML config file")
	f.StringVarP(&opts.url, "url", "u", config.DefaultURL, "URL of the llama.cpp server completion endpoint")
	f.StringVarP(&opts.systemPrompt, "system-prompt", "s", "", "System prompt (default: ipython environment instructions)")
	f.StringVar(&opts.systemPromptFile, "system-prompt-file", "", "Read the system prompt from a file and reload it when the file changes")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "User prompt; read from stdin when empty")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Keep asking for user input after each answer")
	f.BoolVar(&opts.autonomous, "autonomous", false, "Let the model play both sides of the conversation")
	f.BoolVar(&opts.stream, "stream", false, "Stream tokens as they are generated")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Print each committed turn in wire format before generating")
	f.BoolVar(&opts.resetOnReload, "reset-on-reload", false, "Start a fresh conversation when the system prompt file changes")
	f.StringVar(&opts.logFile, "log-file", "", "Append all session output to this file")
	f.StringVar(&opts.dump, "dump", "", "Write the transcript as JSON to this file on exit")
	f.IntVar(&opts.maxTurns, "max-turns", 0, "Stop after this many completions (0 = unlimited)")
	f.StringVar(&opts.python, "python", "", "Python interpreter for tool code (default: python3, then python)")
	f.StringVar(&opts.workdir, "workdir", "", "Working directory for tool code (default: current directory)")
	f.DurationVar(&opts.execTimeout, "exec-timeout", config.DefaultExecTimeout, "Time limit for a single tool execution")
	cmd.MarkFlagsMutuallyExclusive("interactive", "autonomous")
	cmd.MarkFlagsMutuallyExclusive("system-prompt", "system-prompt-file")

	return cmd
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("url") {
		cfg.Server.URL = opts.url
	}
	if f.Changed("stream") {
		cfg.Server.Stream = &opts.stream
	}
	if f.Changed("system-prompt") {
		cfg.Session.SystemPrompt = opts.systemPrompt
		cfg.Session.SystemPromptFile = ""
	}
	if f.Changed("system-prompt-file") {
		cfg.Session.SystemPromptFile = opts.systemPromptFile
		cfg.Session.SystemPrompt = ""
	}
	switch {
	case opts.interactive:
		cfg.Session.Mode = "interactive"
	case opts.autonomous:
		cfg.Session.Mode = "autonomous"
	}
	if f.Changed("verbose") {
		cfg.Session.Verbose = &opts.verbose
	}
	if f.Changed("reset-on-reload") {
		cfg.Session.ResetOnReload = &opts.resetOnReload
	}
	if f.Changed("log-file") {
		cfg.Session.LogFile = opts.logFile
	}
	if f.Changed("dump") {
		cfg.Session.Dump = opts.dump
	}
	if f.Changed("max-turns") {
		cfg.Session.MaxTurns = opts.maxTurns
	}
	if f.Changed("python") {
		cfg.Sandbox.Python = opts.python
	}
	if f.Changed("workdir") {
		cfg.Sandbox.WorkDir = opts.workdir
	}
	if f.Changed("exec-timeout") {
		cfg.Sandbox.ExecTimeout = opts.execTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode() == controller.Autonomous && cfg.Session.MaxTurns == 0 {
		slog.Warn("autonomous session without --max-turns runs until interrupted")
	}
	return cfg, nil
}

// sessionError marks failures from a running session, as opposed to flag
// parsing errors cobra returns before RunE.
type sessionError struct{ err error }

func (e *sessionError) Error() string { return e.err.Error() }
func (e *sessionError) Unwrap() error { return e.err }

func execute() error {
	err := newRootCommand().Execute()
	var (
		cfgErr *ConfigError
		sesErr *sessionError
	)
	switch {
	case err == nil, errors.As(err, &cfgErr):
		return err
	case errors.As(err, &sesErr):
		return sesErr.err
	default:
		return &ConfigError{Err: err}
	}
}
