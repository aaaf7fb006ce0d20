package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"devgate/internal/domain"
	"devgate/internal/security"
	"devgate/internal/usecase/console"
)

// ExecuteShellCommandTool runs a command in the gateway's persistent console.
type ExecuteShellCommandTool struct {
	console *console.Manager
	sandbox *security.Sandbox
	logger  *slog.Logger
}

// NewExecuteShellCommandTool creates the execute_shell_command tool.
func NewExecuteShellCommandTool(mgr *console.Manager, sandbox *security.Sandbox, logger *slog.Logger) *ExecuteShellCommandTool {
	return &ExecuteShellCommandTool{console: mgr, sandbox: sandbox, logger: logger}
}

func (t *ExecuteShellCommandTool) Name() string { return "execute_shell_command" }
func (t *ExecuteShellCommandTool) Description() string {
	return "Run a shell command in the workspace's persistent interactive console"
}

func (t *ExecuteShellCommandTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Shell command to execute"},
				"cwd": {"type": "string", "default": ".", "description": "Working directory, relative to the workspace root"}
			},
			"required": ["command"]
		}`),
	}
}

type executeShellParams struct {
	Command string `json:"command"`
	CWD     string `json:"cwd"`
}

func (t *ExecuteShellCommandTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.execute_shell_command", t.logger, params,
		func(ctx context.Context, _ trace.Span, p executeShellParams) (any, error) {
			if err := RequireField("command", p.Command); err != nil {
				return nil, domain.NewDomainError("ExecuteShellCommand", domain.ErrInvalidInput, err.Error())
			}

			cwd := ""
			if p.CWD != "" && p.CWD != "." {
				resolved, err := t.sandbox.Resolve(p.CWD)
				if err != nil {
					return nil, err
				}
				cwd = resolved
			}

			res, err := t.console.Run(ctx, p.Command, cwd)
			if err != nil {
				return nil, err
			}

			// A nonzero exit code is information for the caller, not a tool
			// failure: only system-level console errors reach the branch above.
			return TextResult(renderRunResult(res)), nil
		})
}

func renderRunResult(res *domain.ConsoleRunResult) string {
	var sb strings.Builder
	sb.WriteString(res.Output)
	if !strings.HasSuffix(res.Output, "\n") && res.Output != "" {
		sb.WriteString("\n")
	}
	switch {
	case res.ExitCode != nil:
		fmt.Fprintf(&sb, "(exit code %d)", *res.ExitCode)
	case res.Degraded:
		sb.WriteString("(command submitted; output captured after settle interval, exit code unavailable)")
	}
	return sb.String()
}
