// Package toolcall finds tool invocation requests embedded in assistant turns.
//
// A request is the text between the python tag and the end-of-message token.
// Extraction must only run on a fully assembled turn: a dangling start tag in
// a partial stream is not a tool call.
package toolcall

import (
	"strings"

	"github.com/petasbytes/llamachat/internal/template"
)

const (
	StartSentinel = template.PythonTag
	EndSentinel   = template.EndOfMessage
)

// Span is the code payload of a tool invocation.
type Span struct {
	Code string
}

// Extract returns the first sentinel-delimited span in content.
// Text after the closing sentinel is ignored.
func Extract(content string) (Span, bool) {
	return between(content, StartSentinel, EndSentinel)
}

func between(s, start, end string) (Span, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return Span{}, false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return Span{}, false
	}
	return Span{Code: rest[:j]}, true
}
