package editor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"devgate/internal/domain"
)

type localFS struct{}

func (localFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (localFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}
func (localFS) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return string(data)
}

func TestApply_ReplaceMiddleLine(t *testing.T) {
	path := writeTemp(t, "a\nb\nc")
	ed := NewLineEditor(localFS{})

	res, err := ed.Apply(LineEdit{
		Path: path, StartLine: 1, EndLine: 1,
		Content: "B", OriginalCode: "b",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readBack(t, path); got != "a\nB\nc" {
		t.Errorf("file = %q, want %q", got, "a\nB\nc")
	}
	if res.ReplacedLines != 1 || res.NewLineCount != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestApply_MultiLineReplacementChangesLineCount(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\nfour")
	ed := NewLineEditor(localFS{})

	res, err := ed.Apply(LineEdit{
		Path: path, StartLine: 1, EndLine: 2,
		Content: "merged", OriginalCode: "two\nthree",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readBack(t, path); got != "one\nmerged\nfour" {
		t.Errorf("file = %q", got)
	}
	if res.NewLineCount != 3 {
		t.Errorf("NewLineCount = %d, want 3", res.NewLineCount)
	}
}

func TestApply_StaleContent_FileUntouched(t *testing.T) {
	path := writeTemp(t, "a\nb\nc")
	ed := NewLineEditor(localFS{})

	// Another writer changed line 1 after the caller captured its snapshot.
	if err := os.WriteFile(path, []byte("a\nCHANGED\nc"), 0644); err != nil {
		t.Fatalf("concurrent write: %v", err)
	}

	_, err := ed.Apply(LineEdit{
		Path: path, StartLine: 1, EndLine: 1,
		Content: "B", OriginalCode: "b",
	})
	if !errors.Is(err, domain.ErrStaleContent) {
		t.Fatalf("expected ErrStaleContent, got %v", err)
	}
	if got := readBack(t, path); got != "a\nCHANGED\nc" {
		t.Errorf("stale apply must not modify the file, got %q", got)
	}

	// Retrying with the same stale snapshot keeps failing; no partial state.
	_, err = ed.Apply(LineEdit{
		Path: path, StartLine: 1, EndLine: 1,
		Content: "B", OriginalCode: "b",
	})
	if !errors.Is(err, domain.ErrStaleContent) {
		t.Fatalf("retry: expected ErrStaleContent, got %v", err)
	}
}

func TestApply_RangeOutOfBounds(t *testing.T) {
	path := writeTemp(t, "a\nb\nc")
	ed := NewLineEditor(localFS{})

	cases := []struct{ start, end int }{
		{5, 6},  // beyond the document
		{-1, 0}, // negative start
		{2, 1},  // inverted range
	}
	for _, tc := range cases {
		_, err := ed.Apply(LineEdit{
			Path: path, StartLine: tc.start, EndLine: tc.end,
			Content: "x", OriginalCode: "y",
		})
		if !errors.Is(err, domain.ErrRangeOutOfBounds) {
			t.Errorf("range %d-%d: expected ErrRangeOutOfBounds, got %v", tc.start, tc.end, err)
		}
	}
	if got := readBack(t, path); got != "a\nb\nc" {
		t.Errorf("file modified by rejected edit: %q", got)
	}
}

func TestApply_MissingFile(t *testing.T) {
	ed := NewLineEditor(localFS{})

	_, err := ed.Apply(LineEdit{
		Path: filepath.Join(t.TempDir(), "nope.txt"),
		StartLine: 0, EndLine: 0, Content: "x", OriginalCode: "y",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApply_CRLFPreserved(t *testing.T) {
	path := writeTemp(t, "a\r\nb\r\nc")
	ed := NewLineEditor(localFS{})

	_, err := ed.Apply(LineEdit{
		Path: path, StartLine: 1, EndLine: 1,
		Content: "B", OriginalCode: "b",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readBack(t, path); got != "a\r\nB\r\nc" {
		t.Errorf("file = %q, want CRLF separators preserved", got)
	}
}

func TestApply_CRLFSnapshotMustMatchBytes(t *testing.T) {
	path := writeTemp(t, "a\r\nb\r\nc")
	ed := NewLineEditor(localFS{})

	// LF-normalized snapshot of a CRLF range is a byte mismatch, not a match.
	_, err := ed.Apply(LineEdit{
		Path: path, StartLine: 0, EndLine: 1,
		Content: "x", OriginalCode: "a\nb",
	})
	if !errors.Is(err, domain.ErrStaleContent) {
		t.Fatalf("expected ErrStaleContent for normalized snapshot, got %v", err)
	}
}

func TestApply_TrailingNewlinePreserved(t *testing.T) {
	path := writeTemp(t, "a\nb\n")
	ed := NewLineEditor(localFS{})

	_, err := ed.Apply(LineEdit{
		Path: path, StartLine: 0, EndLine: 0,
		Content: "A", OriginalCode: "a",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readBack(t, path); got != "A\nb\n" {
		t.Errorf("file = %q, want trailing newline kept", got)
	}
}

func TestApply_PermissionsPreserved(t *testing.T) {
	path := writeTemp(t, "a\nb")
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	ed := NewLineEditor(localFS{})

	_, err := ed.Apply(LineEdit{
		Path: path, StartLine: 0, EndLine: 0,
		Content: "A", OriginalCode: "a",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 0600", info.Mode().Perm())
	}
}
