package tools

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/petasbytes/llamachat/internal/safety"
)

// Executor runs code that is not a built-in tool call.
type Executor interface {
	Execute(ctx context.Context, code string) (string, error)
}

// Router sends `name.call(...)` cells for registered tools to their Go
// handlers and everything else to the fallback executor.
type Router struct {
	tools    map[string]ToolDefinition
	fallback Executor
	logger   *slog.Logger
}

func NewRouter(fallback Executor, logger *slog.Logger, defs ...ToolDefinition) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{tools: make(map[string]ToolDefinition, len(defs)), fallback: fallback, logger: logger}
	for _, d := range defs {
		r.tools[d.Name] = d
	}
	return r
}

// Names lists the registered tools in sorted order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute implements the controller's Executor. Argument problems are
// returned as ToolError text so the model can correct itself.
func (r *Router) Execute(ctx context.Context, code string) (string, error) {
	call, err := ParseCall(code)
	def, registered := r.tools[call.Tool]
	if errors.Is(err, ErrNotACall) || !registered {
		if r.fallback == nil {
			return "", errors.New("tools: no code executor configured")
		}
		return r.fallback.Execute(ctx, code)
	}
	if err != nil {
		return safety.ToolError{Code: "ERR_BAD_CALL", Message: err.Error()}.Error(), nil
	}
	if te := checkArgs(def, call.Args); te != nil {
		return te.Error(), nil
	}

	r.logger.Debug("dispatching built-in tool", "tool", def.Name, "args", len(call.Args))
	out, err := def.Function(ctx, call.Args)
	if err != nil {
		var te safety.ToolError
		if errors.As(err, &te) {
			return te.Error(), nil
		}
		return "", err
	}
	return out, nil
}

func checkArgs(def ToolDefinition, args map[string]any) *safety.ToolError {
	if def.InputSchema == nil {
		return nil
	}
	for _, name := range def.InputSchema.Required {
		if _, ok := args[name]; !ok {
			return &safety.ToolError{Code: "ERR_MISSING_ARG", Message: name + " is required"}
		}
	}
	if props := def.InputSchema.Properties; props != nil {
		for name := range args {
			if _, ok := props.Get(name); !ok {
				return &safety.ToolError{Code: "ERR_UNKNOWN_ARG", Message: "unknown argument " + name}
			}
		}
	}
	return nil
}
