// Package completion sends serialized transcripts to a llama.cpp style
// completion endpoint and assembles the generated turn.
//
// Modes:
//   - buffered: one JSON body carrying "content";
//   - streaming: server-sent events, one JSON object per event, each with an
//     optional "content" fragment. Blank and keep-alive events are skipped.
//
// Display and transcript mutation are decoupled: fragments go to the caller's
// FragmentFunc as they arrive, the turn is returned once complete.
package completion
