package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Session finished or was interrupted
	ExitSessionFailed = 1 // Completion server or invariant failure
	ExitConfigError   = 2 // Invalid flags, config file or environment
)

// ConfigError marks failures that happen before a session starts.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			os.Exit(ExitConfigError)
		}
		os.Exit(ExitSessionFailed)
	}
}
