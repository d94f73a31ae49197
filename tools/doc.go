// Package tools defines built-in tools the model can call from a python tag.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Router: dispatches `name.call(k=v, ...)` cells to registered tools and
//     sends everything else to the Python sandbox.
//   - brave_search: web search through the Brave Search API.
package tools
