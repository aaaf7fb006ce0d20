package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"devgate/internal/domain"
	"devgate/internal/infra/tracer"
	"devgate/internal/security"
	"devgate/internal/usecase/editor"
)

// ReplaceLinesTool applies a validated line-range edit to a workspace file.
type ReplaceLinesTool struct {
	editor  *editor.LineEditor
	sandbox *security.Sandbox
	bus     domain.EventBus
	logger  *slog.Logger
}

// NewReplaceLinesTool creates the replace_lines tool.
func NewReplaceLinesTool(ed *editor.LineEditor, sandbox *security.Sandbox, bus domain.EventBus, logger *slog.Logger) *ReplaceLinesTool {
	return &ReplaceLinesTool{editor: ed, sandbox: sandbox, bus: bus, logger: logger}
}

func (t *ReplaceLinesTool) Name() string { return "replace_lines" }
func (t *ReplaceLinesTool) Description() string {
	return "Replace a range of lines in a workspace file, verified against the caller's snapshot of those lines"
}

func (t *ReplaceLinesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path relative to the workspace root"},
				"startLine": {"type": "integer", "description": "First line to replace (0-based, inclusive)"},
				"endLine": {"type": "integer", "description": "Last line to replace (0-based, inclusive)"},
				"content": {"type": "string", "description": "Replacement text for the range"},
				"originalCode": {"type": "string", "description": "Exact current text of the lines being replaced"}
			},
			"required": ["path", "startLine", "endLine", "content", "originalCode"]
		}`),
	}
}

type replaceLinesParams struct {
	Path         string `json:"path"`
	StartLine    int    `json:"startLine"`
	EndLine      int    `json:"endLine"`
	Content      string `json:"content"`
	OriginalCode string `json:"originalCode"`
}

func (t *ReplaceLinesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.replace_lines", t.logger, params,
		func(ctx context.Context, span trace.Span, p replaceLinesParams) (any, error) {
			// Cheap shape check before touching the file; the editor still
			// validates the range against the file's line count.
			if err := ValidateRange("startLine", p.StartLine, 0, p.EndLine); err != nil {
				return nil, domain.NewDomainError("ReplaceLines", domain.ErrRangeOutOfBounds, err.Error())
			}

			resolved, err := t.sandbox.Resolve(p.Path)
			if err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.IntAttr("edit.start_line", p.StartLine),
				tracer.IntAttr("edit.end_line", p.EndLine),
			)

			res, err := t.editor.Apply(editor.LineEdit{
				Path:         resolved,
				StartLine:    p.StartLine,
				EndLine:      p.EndLine,
				Content:      p.Content,
				OriginalCode: p.OriginalCode,
			})
			if err != nil {
				return nil, err
			}

			rel := t.sandbox.Rel(resolved)
			t.logger.Info("lines replaced",
				"path", rel, "start", p.StartLine, "end", p.EndLine, "lines_after", res.NewLineCount)
			t.emit(ctx, rel, res)

			return TextResult(fmt.Sprintf("replaced lines %d-%d in %s (file now has %d lines)",
				res.StartLine, res.EndLine, rel, res.NewLineCount)), nil
		})
}

func (t *ReplaceLinesTool) emit(ctx context.Context, rel string, res *editor.Result) {
	if t.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"path":       rel,
		"start_line": res.StartLine,
		"end_line":   res.EndLine,
		"line_count": res.NewLineCount,
	})
	t.bus.Publish(ctx, domain.Event{
		Type:      domain.EventFileEdited,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
