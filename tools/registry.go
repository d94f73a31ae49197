package tools

import "os"

// Registry returns the built-in tools available in this environment.
// brave_search needs BRAVE_API_KEY.
func Registry() []ToolDefinition {
	var defs []ToolDefinition
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		defs = append(defs, NewBraveSearch(key).Definition())
	}
	return defs
}
