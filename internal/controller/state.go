package controller

import (
	"fmt"
	"strings"
)

// State is a position in the turn-taking state machine.
type State int

const (
	AwaitUser State = iota
	Generating
	CheckTool
	ExecutingTool
	AwaitNext
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitUser:
		return "await_user"
	case Generating:
		return "generating"
	case CheckTool:
		return "check_tool"
	case ExecutingTool:
		return "executing_tool"
	case AwaitNext:
		return "await_next"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode decides what follows an assistant turn without a tool call.
// It is fixed for the lifetime of a Controller.
type Mode int

const (
	SingleShot Mode = iota
	Interactive
	Autonomous
)

func (m Mode) String() string {
	switch m {
	case SingleShot:
		return "single-shot"
	case Interactive:
		return "interactive"
	case Autonomous:
		return "autonomous"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-shot", "single", "oneshot":
		return SingleShot, nil
	case "interactive":
		return Interactive, nil
	case "autonomous", "self-play":
		return Autonomous, nil
	}
	return SingleShot, fmt.Errorf("unknown mode %q (want single-shot, interactive or autonomous)", s)
}
