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
	"devgate/internal/usecase/symbols"
)

// SearchSymbolsTool finds symbol definitions across the workspace by name.
type SearchSymbolsTool struct {
	index  *symbols.Index
	logger *slog.Logger
}

// NewSearchSymbolsTool creates the search_symbols tool.
func NewSearchSymbolsTool(index *symbols.Index, logger *slog.Logger) *SearchSymbolsTool {
	return &SearchSymbolsTool{index: index, logger: logger}
}

func (t *SearchSymbolsTool) Name() string { return "search_symbols" }
func (t *SearchSymbolsTool) Description() string {
	return "Search the workspace for symbol definitions matching a name"
}

func (t *SearchSymbolsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Symbol name to search for (case-insensitive)"},
				"maxResults": {"type": "integer", "default": 10, "minimum": 1, "description": "Maximum number of matches to return"}
			},
			"required": ["query"]
		}`),
	}
}

type searchSymbolsParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

func (t *SearchSymbolsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.search_symbols", t.logger, params,
		func(_ context.Context, span trace.Span, p searchSymbolsParams) (any, error) {
			if err := RequireField("query", p.Query); err != nil {
				return nil, domain.NewDomainError("SearchSymbols", domain.ErrInvalidInput, err.Error())
			}
			if p.MaxResults <= 0 {
				p.MaxResults = 10
			}

			matches, err := t.index.Search(p.Query, p.MaxResults)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.IntAttr("symbols.matches", len(matches)))

			if len(matches) == 0 {
				return TextResult(fmt.Sprintf("no symbols matching %q", p.Query)), nil
			}
			var sb strings.Builder
			for _, m := range matches {
				fmt.Fprintf(&sb, "%s (%s) %s:%d", m.Name, m.Kind, m.Path, m.Line)
				if m.Container != "" {
					fmt.Fprintf(&sb, " in %s", m.Container)
				}
				sb.WriteString("\n")
			}
			return TextResult(strings.TrimSuffix(sb.String(), "\n")), nil
		})
}

// GetDocumentSymbolsTool returns the hierarchical outline of one file.
type GetDocumentSymbolsTool struct {
	index   *symbols.Index
	sandbox *security.Sandbox
	logger  *slog.Logger
}

// NewGetDocumentSymbolsTool creates the get_document_symbols tool.
func NewGetDocumentSymbolsTool(index *symbols.Index, sandbox *security.Sandbox, logger *slog.Logger) *GetDocumentSymbolsTool {
	return &GetDocumentSymbolsTool{index: index, sandbox: sandbox, logger: logger}
}

func (t *GetDocumentSymbolsTool) Name() string { return "get_document_symbols" }
func (t *GetDocumentSymbolsTool) Description() string {
	return "Return the symbol outline of a single workspace file"
}

func (t *GetDocumentSymbolsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path relative to the workspace root"},
				"maxDepth": {"type": "integer", "default": 0, "description": "Maximum nesting depth; 0 means unlimited"}
			},
			"required": ["path"]
		}`),
	}
}

type getDocumentSymbolsParams struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"maxDepth"`
}

func (t *GetDocumentSymbolsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_document_symbols", t.logger, params,
		func(_ context.Context, _ trace.Span, p getDocumentSymbolsParams) (any, error) {
			resolved, err := t.sandbox.Resolve(p.Path)
			if err != nil {
				return nil, err
			}

			outline, err := t.index.Document(resolved, p.MaxDepth)
			if err != nil {
				return nil, err
			}
			if len(outline) == 0 {
				return TextResult("no symbols found"), nil
			}

			var sb strings.Builder
			renderOutline(&sb, outline, 0)
			return TextResult(strings.TrimSuffix(sb.String(), "\n")), nil
		})
}

func renderOutline(sb *strings.Builder, nodes []domain.DocumentSymbol, indent int) {
	for _, n := range nodes {
		fmt.Fprintf(sb, "%s%s (%s) line %d\n", strings.Repeat("  ", indent), n.Name, n.Kind, n.Line)
		renderOutline(sb, n.Children, indent+1)
	}
}
