package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"devgate/internal/domain"
	"devgate/internal/infra/tracer"
	"devgate/internal/security"
)

// fileTools bundles the dependencies shared by the file-oriented tools.
type fileTools struct {
	backend FilesystemBackend
	sandbox *security.Sandbox
	bus     domain.EventBus
	logger  *slog.Logger
}

func (t *fileTools) emit(ctx context.Context, eventType domain.EventType, payload any) {
	if t.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	t.bus.Publish(ctx, domain.Event{Type: eventType, Timestamp: time.Now(), Payload: data})
}

// --- list_files ---

// ListFilesTool lists directory entries within the workspace.
type ListFilesTool struct {
	fileTools
}

// NewListFilesTool creates the list_files tool.
func NewListFilesTool(backend FilesystemBackend, sandbox *security.Sandbox, logger *slog.Logger) *ListFilesTool {
	return &ListFilesTool{fileTools{backend: backend, sandbox: sandbox, logger: logger}}
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List files and directories at a workspace path"
}

func (t *ListFilesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory path relative to the workspace root, \".\" for the root itself"},
				"recursive": {"type": "boolean", "default": false, "description": "Descend into subdirectories"}
			},
			"required": ["path"]
		}`),
	}
}

type listFilesParams struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

func (t *ListFilesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.list_files", t.logger, params,
		func(_ context.Context, span trace.Span, p listFilesParams) (any, error) {
			resolved, err := t.sandbox.Resolve(p.Path)
			if err != nil {
				return nil, err
			}

			var lines []string
			if p.Recursive {
				lines, err = t.walk(resolved)
			} else {
				lines, err = t.listDir(resolved)
			}
			if err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.IntAttr("entries", len(lines)))
			if len(lines) == 0 {
				return TextResult("(empty directory)"), nil
			}
			return TextResult(strings.Join(lines, "\n")), nil
		})
}

func (t *ListFilesTool) listDir(resolved string) ([]string, error) {
	entries, err := t.backend.ReadDir(resolved)
	if err != nil {
		return nil, domain.NewDomainError("ListFiles", domain.ErrNotFound, err.Error())
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, entry.Name()+"/")
		} else {
			lines = append(lines, entry.Name())
		}
	}
	return lines, nil
}

func (t *ListFilesTool) walk(resolved string) ([]string, error) {
	var lines []string
	err := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == resolved {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		rel, rerr := filepath.Rel(resolved, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		lines = append(lines, rel)
		return nil
	})
	if err != nil {
		return nil, domain.WrapOp("ListFiles", err)
	}
	sort.Strings(lines)
	return lines, nil
}

// --- read_file ---

// ReadFileTool returns file contents, capped to a character budget.
type ReadFileTool struct {
	fileTools
	maxCharacters int
}

// NewReadFileTool creates the read_file tool. maxCharacters caps the default
// budget advertised in the schema; callers may request less but not more.
func NewReadFileTool(backend FilesystemBackend, sandbox *security.Sandbox, logger *slog.Logger, maxCharacters int) *ReadFileTool {
	if maxCharacters <= 0 {
		maxCharacters = 100000
	}
	return &ReadFileTool{
		fileTools:     fileTools{backend: backend, sandbox: sandbox, logger: logger},
		maxCharacters: maxCharacters,
	}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a workspace file"
}

func (t *ReadFileTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(fmt.Sprintf(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path relative to the workspace root"},
				"encoding": {"type": "string", "default": "utf-8", "description": "Text encoding of the file"},
				"maxCharacters": {"type": "integer", "default": %d, "description": "Maximum number of characters to return"},
				"startLine": {"type": "integer", "default": -1, "description": "First line to return (0-based, inclusive); -1 reads from the start"},
				"endLine": {"type": "integer", "default": -1, "description": "Last line to return (0-based, inclusive); -1 reads to the end"}
			},
			"required": ["path"]
		}`, t.maxCharacters)),
	}
}

type readFileParams struct {
	Path          string `json:"path"`
	Encoding      string `json:"encoding"`
	MaxCharacters int    `json:"maxCharacters"`
	StartLine     int    `json:"startLine"`
	EndLine       int    `json:"endLine"`
}

// maxLineIndex bounds caller-supplied line numbers; real files are far below it.
const maxLineIndex = 1 << 30

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.read_file", t.logger, params,
		func(_ context.Context, span trace.Span, p readFileParams) (any, error) {
			if err := ValidateEnum("encoding", strings.ToLower(p.Encoding), "utf-8", "utf8"); err != nil {
				return nil, domain.NewDomainError("ReadFile", domain.ErrUnsupportedEncoding, err.Error())
			}
			if err := ValidateAll(
				ValidateRange("startLine", p.StartLine, -1, maxLineIndex),
				ValidateRange("endLine", p.EndLine, -1, maxLineIndex),
			); err != nil {
				return nil, domain.NewDomainError("ReadFile", domain.ErrInvalidInput, err.Error())
			}

			resolved, err := t.sandbox.Resolve(p.Path)
			if err != nil {
				return nil, err
			}

			data, err := t.backend.ReadFile(resolved)
			if err != nil {
				return nil, domain.NewDomainError("ReadFile", domain.ErrNotFound, err.Error())
			}

			budget := p.MaxCharacters
			if budget <= 0 || budget > t.maxCharacters {
				budget = t.maxCharacters
			}

			if !utf8.Valid(data) {
				return t.binaryResult(span, data, p, budget)
			}

			text := string(data)
			if p.StartLine >= 0 || p.EndLine >= 0 {
				text, err = sliceLines(text, p.StartLine, p.EndLine)
				if err != nil {
					return nil, err
				}
			}
			if n := len([]rune(text)); n > budget {
				return nil, domain.NewDomainError("ReadFile", domain.ErrBudgetExceeded,
					fmt.Sprintf("content has %d characters, budget is %d", n, budget))
			}

			span.SetAttributes(tracer.IntAttr("bytes", len(data)))
			t.logger.Debug("file read", "path", t.sandbox.Rel(resolved), "size", len(data))
			return TextResult(text), nil
		})
}

// binaryResult returns non-UTF-8 content as a base64-tagged block so the
// transport never carries mangled text.
func (t *ReadFileTool) binaryResult(span trace.Span, data []byte, p readFileParams, budget int) (any, error) {
	if p.StartLine >= 0 || p.EndLine >= 0 {
		return nil, domain.NewDomainError("ReadFile", domain.ErrInvalidInput,
			"line ranges apply to text files only")
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > budget {
		return nil, domain.NewDomainError("ReadFile", domain.ErrBudgetExceeded,
			fmt.Sprintf("encoded content has %d characters, budget is %d", len(encoded), budget))
	}
	span.SetAttributes(tracer.IntAttr("bytes", len(data)))
	return &domain.ToolResult{
		Content: []domain.Content{{Kind: domain.ContentBase64, Text: encoded}},
	}, nil
}

// sliceLines returns the requested line window of text, -1 meaning "open".
// The end is clamped to the last line; a start past the end of the file or
// past the requested end is an error.
func sliceLines(text string, startLine, endLine int) (string, error) {
	lines := strings.Split(text, "\n")
	start := startLine
	if start < 0 {
		start = 0
	}
	end := endLine
	if end < 0 || end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start >= len(lines) || start > end {
		return "", domain.NewDomainError("ReadFile", domain.ErrRangeOutOfBounds,
			fmt.Sprintf("lines %d-%d requested, file has %d lines", startLine, endLine, len(lines)))
	}
	return strings.Join(lines[start:end+1], "\n"), nil
}

// --- create_file ---

// CreateFileTool creates a new workspace file, with parent directories
// created as needed.
type CreateFileTool struct {
	fileTools
}

// NewCreateFileTool creates the create_file tool.
func NewCreateFileTool(backend FilesystemBackend, sandbox *security.Sandbox, bus domain.EventBus, logger *slog.Logger) *CreateFileTool {
	return &CreateFileTool{fileTools{backend: backend, sandbox: sandbox, bus: bus, logger: logger}}
}

func (t *CreateFileTool) Name() string { return "create_file" }
func (t *CreateFileTool) Description() string {
	return "Create a new file in the workspace"
}

func (t *CreateFileTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path relative to the workspace root"},
				"content": {"type": "string", "default": "", "description": "Initial file content"},
				"overwrite": {"type": "boolean", "default": false, "description": "Replace the file if it already exists"},
				"ignoreIfExists": {"type": "boolean", "default": false, "description": "Succeed without writing if the file already exists"}
			},
			"required": ["path"]
		}`),
	}
}

type createFileParams struct {
	Path           string `json:"path"`
	Content        string `json:"content"`
	Overwrite      bool   `json:"overwrite"`
	IgnoreIfExists bool   `json:"ignoreIfExists"`
}

func (t *CreateFileTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.create_file", t.logger, params,
		func(ctx context.Context, _ trace.Span, p createFileParams) (any, error) {
			resolved, err := t.sandbox.Resolve(p.Path)
			if err != nil {
				return nil, err
			}

			if _, serr := t.backend.Stat(resolved); serr == nil {
				switch {
				case p.IgnoreIfExists && !p.Overwrite:
					return TextResult(fmt.Sprintf("file %s already exists, left unchanged", p.Path)), nil
				case !p.Overwrite:
					return nil, domain.NewDomainError("CreateFile", domain.ErrInvalidInput,
						fmt.Sprintf("file %s already exists", p.Path))
				}
			}

			if err := t.backend.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
				return nil, domain.NewDomainError("CreateFile", domain.ErrHostRejected, err.Error())
			}
			if err := t.backend.WriteFile(resolved, []byte(p.Content), 0644); err != nil {
				return nil, domain.NewDomainError("CreateFile", domain.ErrHostRejected, err.Error())
			}

			rel := t.sandbox.Rel(resolved)
			t.logger.Info("file created", "path", rel, "size", len(p.Content))
			t.emit(ctx, domain.EventFileCreated, map[string]any{"path": rel, "size": len(p.Content)})
			return TextResult(fmt.Sprintf("created %s (%d bytes)", rel, len(p.Content))), nil
		})
}
