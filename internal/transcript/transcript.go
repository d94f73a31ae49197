// Package transcript holds the ordered turn history of a conversation.
//
// Invariants:
//   - the first turn is always a system turn;
//   - turns are append-only, except that turn 0 may be replaced on a system
//     prompt reload;
//   - at most one turn is open (empty content, awaiting generation or input)
//     and it is always the last turn.
package transcript

import (
	"errors"
	"fmt"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Turn is one role-tagged unit of dialogue.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// Open reports whether the turn is a provisional placeholder.
func (t Turn) Open() bool { return t.Content == "" }

var (
	ErrNoOpenTurn   = errors.New("transcript: no open turn")
	ErrOpenTurn     = errors.New("transcript: an open turn is pending")
	ErrEmptyContent = errors.New("transcript: empty content")
)

// Transcript is the single source of truth for conversation state.
// It is not safe for concurrent use; the controller owns it.
type Transcript struct {
	turns []Turn
}

// New returns a transcript seeded with a system turn.
func New(system string) *Transcript {
	return &Transcript{turns: []Turn{{Role: RoleSystem, Content: system}}}
}

// Append adds a complete turn. Provisional turns go through Open instead.
func (t *Transcript) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("transcript: invalid role %q", turn.Role)
	}
	if turn.Open() {
		return ErrEmptyContent
	}
	if t.HasOpen() {
		return ErrOpenTurn
	}
	t.turns = append(t.turns, turn)
	return nil
}

// Open appends a provisional placeholder for role.
func (t *Transcript) Open(role Role) error {
	if !role.Valid() || role == RoleSystem {
		return fmt.Errorf("transcript: cannot open a %q turn", role)
	}
	if t.HasOpen() {
		return ErrOpenTurn
	}
	t.turns = append(t.turns, Turn{Role: role})
	return nil
}

// Fill completes the open placeholder with content and returns the filled turn.
func (t *Transcript) Fill(content string) (Turn, error) {
	if !t.HasOpen() {
		return Turn{}, ErrNoOpenTurn
	}
	if content == "" {
		return Turn{}, ErrEmptyContent
	}
	i := len(t.turns) - 1
	t.turns[i].Content = content
	return t.turns[i], nil
}

// ReplaceSystem swaps the content of the leading system turn in place.
func (t *Transcript) ReplaceSystem(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	t.turns[0] = Turn{Role: RoleSystem, Content: content}
	return nil
}

// Reset discards the conversation and starts over from a new system turn.
func (t *Transcript) Reset(system string) error {
	if system == "" {
		return ErrEmptyContent
	}
	t.turns = []Turn{{Role: RoleSystem, Content: system}}
	return nil
}

// HasOpen reports whether the last turn is a provisional placeholder.
// The system turn never counts as open.
func (t *Transcript) HasOpen() bool {
	return len(t.turns) > 1 && t.turns[len(t.turns)-1].Open()
}

// WellFormed reports whether the transcript can be transmitted as history:
// every turn except an optional trailing placeholder has content.
func (t *Transcript) WellFormed() bool {
	for i, turn := range t.turns {
		if turn.Open() && (i == 0 || i != len(t.turns)-1) {
			return false
		}
	}
	return t.turns[0].Role == RoleSystem
}

// Turns returns a copy of the turns, oldest first.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int { return len(t.turns) }

// Last returns the newest turn.
func (t *Transcript) Last() Turn { return t.turns[len(t.turns)-1] }

// LastNonTool returns the newest turn whose role is not tool.
func (t *Transcript) LastNonTool() Turn {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role != RoleTool {
			return t.turns[i]
		}
	}
	return t.turns[0]
}
