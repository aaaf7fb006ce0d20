// Package editor applies validated line-range edits to workspace files.
//
// An edit carries the caller's snapshot of the lines it intends to replace.
// The edit is applied only when that snapshot still matches the file
// byte-for-byte — an optimistic-concurrency check that prevents silently
// overwriting a concurrent change. There is no merge attempt and no
// line-ending normalization that could mask a real divergence.
package editor

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"devgate/internal/domain"
)

// Filesystem is the narrow file capability the editor needs.
// *tool.LocalFilesystemBackend satisfies it.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Stat(path string) (fs.FileInfo, error)
}

// LineEdit is a request to replace the lines [StartLine, EndLine] of Path
// with Content, valid only while those lines still equal OriginalCode.
// Line numbers are zero-based and inclusive.
type LineEdit struct {
	Path         string
	StartLine    int
	EndLine      int
	Content      string
	OriginalCode string
}

// Result reports a successfully applied edit.
type Result struct {
	Path          string `json:"path"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	ReplacedLines int    `json:"replaced_lines"`
	NewLineCount  int    `json:"new_line_count"`
}

// LineEditor validates and applies line-range edits through a Filesystem.
type LineEditor struct {
	fs Filesystem
}

// NewLineEditor creates a line editor over the given filesystem.
func NewLineEditor(fs Filesystem) *LineEditor {
	return &LineEditor{fs: fs}
}

// Apply performs the edit. Failure modes, in check order:
//
//   - domain.ErrNotFound: the file cannot be read
//   - domain.ErrRangeOutOfBounds: start/end fall outside the document
//   - domain.ErrStaleContent: the in-range lines no longer equal OriginalCode
//   - domain.ErrHostRejected: the filesystem refused the write
//
// On a stale or out-of-bounds request the file is left untouched.
func (e *LineEditor) Apply(req LineEdit) (*Result, error) {
	const op = "LineEditor.Apply"

	data, err := e.fs.ReadFile(req.Path)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrNotFound, err.Error())
	}

	// The write preserves the file's current permission bits.
	perm := os.FileMode(0644)
	if info, err := e.fs.Stat(req.Path); err == nil {
		perm = info.Mode().Perm()
	}

	sep := detectSeparator(data)
	lines := strings.Split(string(data), sep)

	if req.StartLine < 0 || req.EndLine < req.StartLine || req.EndLine >= len(lines) {
		return nil, domain.NewDomainError(op, domain.ErrRangeOutOfBounds,
			fmt.Sprintf("requested lines %d-%d, document has %d", req.StartLine, req.EndLine, len(lines)))
	}

	current := strings.Join(lines[req.StartLine:req.EndLine+1], sep)
	if current != req.OriginalCode {
		return nil, domain.NewDomainError(op, domain.ErrStaleContent,
			fmt.Sprintf("lines %d-%d no longer match the provided original content", req.StartLine, req.EndLine))
	}

	// Splice the replacement over the spanned byte range in one write.
	updated := make([]string, 0, len(lines)-(req.EndLine-req.StartLine))
	updated = append(updated, lines[:req.StartLine]...)
	updated = append(updated, req.Content)
	updated = append(updated, lines[req.EndLine+1:]...)

	if err := e.fs.WriteFile(req.Path, []byte(strings.Join(updated, sep)), perm); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrHostRejected, err.Error())
	}

	return &Result{
		Path:          req.Path,
		StartLine:     req.StartLine,
		EndLine:       req.EndLine,
		ReplacedLines: req.EndLine - req.StartLine + 1,
		NewLineCount:  len(updated),
	}, nil
}

// detectSeparator returns the document's line separator. A document with any
// CRLF line break is treated as CRLF throughout; comparison against the
// caller's snapshot stays byte-exact either way.
func detectSeparator(data []byte) string {
	if strings.Contains(string(data), "\r\n") {
		return "\r\n"
	}
	return "\n"
}
