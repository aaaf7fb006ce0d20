package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"devgate/internal/domain"
	"devgate/internal/usecase/command"
)

// ListCommandsTool lists the host commands available through the gateway.
type ListCommandsTool struct {
	registry *command.Registry
	logger   *slog.Logger
}

// NewListCommandsTool creates the list_commands tool.
func NewListCommandsTool(reg *command.Registry, logger *slog.Logger) *ListCommandsTool {
	return &ListCommandsTool{registry: reg, logger: logger}
}

func (t *ListCommandsTool) Name() string { return "list_commands" }
func (t *ListCommandsTool) Description() string {
	return "List host commands that can be executed through the gateway"
}

func (t *ListCommandsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"filter": {"type": "string", "default": "", "description": "Substring filter on command names"},
				"limit": {"type": "integer", "default": 100, "minimum": 1, "description": "Maximum number of commands to return"}
			}
		}`),
	}
}

type listCommandsParams struct {
	Filter string `json:"filter"`
	Limit  int    `json:"limit"`
}

func (t *ListCommandsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.list_commands", t.logger, params,
		func(_ context.Context, _ trace.Span, p listCommandsParams) (any, error) {
			if p.Limit <= 0 {
				p.Limit = 100
			}
			commands := t.registry.List(p.Filter, p.Limit)
			if len(commands) == 0 {
				return TextResult("no commands available"), nil
			}
			var sb strings.Builder
			for _, c := range commands {
				fmt.Fprintf(&sb, "%s — %s\n", c.Name, c.Description)
			}
			return TextResult(strings.TrimSuffix(sb.String(), "\n")), nil
		})
}

// ExecuteCommandTool runs one named host command.
type ExecuteCommandTool struct {
	registry *command.Registry
	logger   *slog.Logger
}

// NewExecuteCommandTool creates the execute_command tool.
func NewExecuteCommandTool(reg *command.Registry, logger *slog.Logger) *ExecuteCommandTool {
	return &ExecuteCommandTool{registry: reg, logger: logger}
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	return "Execute a named host command"
}

func (t *ExecuteCommandTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Command name, as reported by list_commands"},
				"args": {"type": "array", "items": {"type": "string"}, "default": [], "description": "Positional arguments for the command"}
			},
			"required": ["name"]
		}`),
	}
}

type executeCommandParams struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.execute_command", t.logger, params,
		func(ctx context.Context, _ trace.Span, p executeCommandParams) (any, error) {
			out, err := t.registry.Execute(ctx, p.Name, p.Args)
			if err != nil {
				return nil, err
			}
			t.logger.Info("host command executed", "command", p.Name)
			if out == "" {
				out = fmt.Sprintf("command %s completed", p.Name)
			}
			return TextResult(out), nil
		})
}
