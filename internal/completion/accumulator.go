package completion

import "strings"

// StreamAccumulator collects the fragments of one streaming call.
type StreamAccumulator struct {
	b strings.Builder
	n int
}

// Add appends one fragment.
func (a *StreamAccumulator) Add(fragment string) {
	a.b.WriteString(fragment)
	a.n++
}

// String returns everything collected so far.
func (a *StreamAccumulator) String() string { return a.b.String() }

func (a *StreamAccumulator) Len() int { return a.b.Len() }

// Fragments returns the number of fragments added.
func (a *StreamAccumulator) Fragments() int { return a.n }
