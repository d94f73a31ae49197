// Package template encodes turns in the Llama 3.1 prompt format expected by
// the completion server.
//
// Header and terminator tokens are not escaped: content that literally
// contains a header token will confuse LocateLastTurn. That is a property of
// the upstream data, not something this package sanitizes.
package template

import (
	"errors"
	"strings"

	"github.com/petasbytes/llamachat/internal/transcript"
)

const (
	StartHeader  = "<|start_header_id|>"
	EndHeader    = "<|end_header_id|>"
	EndOfTurn    = "<|eot_id|>"
	EndOfMessage = "<|eom_id|>"
	PythonTag    = "<|python_tag|>"
)

// ErrMalformedTranscript means no header token exists in a transcript string.
// A transcript always starts with a system turn, so this is a programming error.
var ErrMalformedTranscript = errors.New("template: malformed transcript: no header token")

// HeaderName maps a role to the name used inside the header token.
func HeaderName(role transcript.Role) string {
	if role == transcript.RoleTool {
		return "ipython"
	}
	return string(role)
}

// Header returns the header block that opens a turn for role.
func Header(role transcript.Role) string {
	return StartHeader + HeaderName(role) + EndHeader + "\n\n"
}

// Encode serializes one turn. Empty content yields an open turn (header
// only) so the server continues generation from there. Content already
// ending in a stop token is not terminated a second time.
func Encode(role transcript.Role, content string) string {
	if content == "" {
		return Header(role)
	}
	var b strings.Builder
	b.Grow(len(StartHeader) + len(EndHeader) + len(content) + 16)
	b.WriteString(Header(role))
	b.WriteString(content)
	if !strings.HasSuffix(content, EndOfTurn) && !strings.HasSuffix(content, EndOfMessage) {
		b.WriteString(EndOfTurn)
	}
	return b.String()
}

// Render serializes turns oldest first.
func Render(turns []transcript.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(Encode(t.Role, t.Content))
	}
	return b.String()
}

// LocateLastTurn returns the byte offset of the last header token in text.
func LocateLastTurn(text string) (int, error) {
	i := strings.LastIndex(text, StartHeader)
	if i < 0 {
		return 0, ErrMalformedTranscript
	}
	return i, nil
}
