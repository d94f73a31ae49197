// Package memory writes the transcript out when a session ends.
//
// Persistence model:
//   - The dump is written once, on exit, for post-mortem inspection.
//   - Open (unfilled) turns are kept so an interrupted generation is visible.
//   - There is no loader; sessions always start fresh.
package memory
