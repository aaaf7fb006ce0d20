package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"devgate/internal/domain"
	"devgate/internal/infra/tracer"
	"devgate/internal/security"
	"devgate/internal/usecase/diagnostics"
)

// GetDiagnosticsTool reports stored workspace diagnostics, filtered by
// severity.
type GetDiagnosticsTool struct {
	collection *diagnostics.Collection
	sandbox    *security.Sandbox
	logger     *slog.Logger
}

// NewGetDiagnosticsTool creates the get_diagnostics tool.
func NewGetDiagnosticsTool(c *diagnostics.Collection, sandbox *security.Sandbox, logger *slog.Logger) *GetDiagnosticsTool {
	return &GetDiagnosticsTool{collection: c, sandbox: sandbox, logger: logger}
}

func (t *GetDiagnosticsTool) Name() string { return "get_diagnostics" }
func (t *GetDiagnosticsTool) Description() string {
	return "Report problems (errors, warnings) known for the workspace or a single file"
}

func (t *GetDiagnosticsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "default": "", "description": "Restrict to one file; empty means the whole workspace"},
				"severities": {
					"type": "array",
					"items": {"type": "string", "enum": ["error", "warning", "information", "hint"]},
					"default": ["error", "warning"],
					"description": "Severity levels to include"
				},
				"includeSource": {"type": "boolean", "default": true, "description": "Include the reporting source (e.g. the linter name)"},
				"format": {"type": "string", "enum": ["text", "json"], "default": "text", "description": "Output format"}
			}
		}`),
	}
}

type getDiagnosticsParams struct {
	Path          string   `json:"path"`
	Severities    []string `json:"severities"`
	IncludeSource bool     `json:"includeSource"`
	Format        string   `json:"format"`
}

func (t *GetDiagnosticsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_diagnostics", t.logger, params,
		func(_ context.Context, span trace.Span, p getDiagnosticsParams) (any, error) {
			if err := ValidateEnum("format", p.Format, "text", "json"); err != nil {
				return nil, domain.NewDomainError("GetDiagnostics", domain.ErrInvalidInput, err.Error())
			}

			severities, err := parseSeverities(p.Severities)
			if err != nil {
				return nil, err
			}

			path := p.Path
			if path != "" {
				resolved, rerr := t.sandbox.Resolve(path)
				if rerr != nil {
					return nil, rerr
				}
				path = t.sandbox.Rel(resolved)
			}

			records := t.collection.Collect(path, severities, p.IncludeSource)
			span.SetAttributes(tracer.IntAttr("diagnostics.count", len(records)))

			if p.Format == "json" {
				return JSONResult(records)
			}
			return TextResult(renderDiagnostics(records)), nil
		})
}

func parseSeverities(names []string) ([]domain.Severity, error) {
	if len(names) == 0 {
		return []domain.Severity{domain.SeverityError, domain.SeverityWarning}, nil
	}
	out := make([]domain.Severity, 0, len(names))
	for _, n := range names {
		s, err := domain.ParseSeverity(n)
		if err != nil {
			return nil, domain.NewDomainError("GetDiagnostics", domain.ErrInvalidInput, err.Error())
		}
		out = append(out, s)
	}
	return out, nil
}

func renderDiagnostics(records []domain.DiagnosticRecord) string {
	if len(records) == 0 {
		return "no diagnostics"
	}
	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "%s:%d:%d [%s] %s",
			r.FilePath, r.Range.StartLine, r.Range.StartCol, r.Severity, r.Message)
		if r.Source != "" {
			fmt.Fprintf(&sb, " (%s)", r.Source)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
