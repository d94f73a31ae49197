// Package controller implements the turn-taking state machine.
//
// Flow:
//
//	AwaitUser -> Generating -> CheckTool -> ExecutingTool -> Generating ...
//	                                     \-> AwaitNext -> AwaitUser | Generating | Terminated
//
// Invariants:
//   - one completion request in flight at a time; tool execution blocks;
//   - the transcript is mutated only after a turn is fully assembled;
//   - the system prompt watcher is polled once per completed generation;
//   - fatal errors leave the transcript as it was at the last good append.
package controller
