package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"devgate/internal/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSearch_RankingExactPrefixSubstring(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Parse() {}\n\nfunc ParseAll() {}\n\nfunc ReparseFast() {}\n")

	ix := NewIndex(root)
	got, err := ix.Search("parse", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[0].Name != "Parse" {
		t.Errorf("exact match should rank first, got %q", got[0].Name)
	}
	if got[1].Name != "ParseAll" {
		t.Errorf("prefix match should rank second, got %q", got[1].Name)
	}
	if got[2].Name != "ReparseFast" {
		t.Errorf("substring match should rank last, got %q", got[2].Name)
	}
}

func TestSearch_TruncatesToMax(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc HandleA() {}\n\nfunc HandleB() {}\n\nfunc HandleC() {}\n")

	ix := NewIndex(root)
	got, err := ix.Search("handle", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestSearch_GoKindsAndContainers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go",
		"package a\n\ntype Server struct{}\n\nfunc (s *Server) Handle() {}\n\nconst Limit = 3\n\nvar Count int\n")

	ix := NewIndex(root)

	method, err := ix.Search("Handle", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(method) != 1 || method[0].Kind != domain.SymbolMethod || method[0].Container != "Server" {
		t.Errorf("method = %+v", method)
	}

	typ, _ := ix.Search("Server", 5)
	if len(typ) == 0 || typ[0].Kind != domain.SymbolType {
		t.Errorf("type = %+v", typ)
	}
	konst, _ := ix.Search("Limit", 5)
	if len(konst) == 0 || konst[0].Kind != domain.SymbolConstant {
		t.Errorf("const = %+v", konst)
	}
}

func TestSearch_SkipsVendoredTrees(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/lib.js", "function Hidden() {}\n")
	writeFile(t, root, "app.js", "function Visible() {}\n")

	ix := NewIndex(root)
	got, err := ix.Search("hidden", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("node_modules must be skipped, got %+v", got)
	}
	vis, _ := ix.Search("visible", 10)
	if len(vis) != 1 || vis[0].Path != "app.js" {
		t.Errorf("visible = %+v", vis)
	}
}

func TestDocument_MarkdownHierarchy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# Title\n\n## Install\n\n### Linux\n\n## Usage\n")

	ix := NewIndex(root)
	outline, err := ix.Document(filepath.Join(root, "doc.md"), 0)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(outline) != 1 || outline[0].Name != "Title" {
		t.Fatalf("outline = %+v", outline)
	}
	children := outline[0].Children
	if len(children) != 2 || children[0].Name != "Install" || children[1].Name != "Usage" {
		t.Fatalf("children = %+v", children)
	}
	if len(children[0].Children) != 1 || children[0].Children[0].Name != "Linux" {
		t.Errorf("nested = %+v", children[0].Children)
	}
}

func TestDocument_MaxDepthPrunes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# Title\n\n## Install\n\n### Linux\n")

	ix := NewIndex(root)
	outline, err := ix.Document(filepath.Join(root, "doc.md"), 2)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(outline) != 1 {
		t.Fatalf("outline = %+v", outline)
	}
	install := outline[0].Children
	if len(install) != 1 || len(install[0].Children) != 0 {
		t.Errorf("depth 3 should be pruned: %+v", install)
	}
}

func TestDocument_PythonIndentation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "class Widget:\n    def render(self):\n        pass\n\ndef main():\n    pass\n")

	ix := NewIndex(root)
	outline, err := ix.Document(filepath.Join(root, "app.py"), 0)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(outline) != 2 {
		t.Fatalf("outline = %+v", outline)
	}
	if outline[0].Name != "Widget" || len(outline[0].Children) != 1 || outline[0].Children[0].Name != "render" {
		t.Errorf("class nesting wrong: %+v", outline[0])
	}
	if outline[1].Name != "main" {
		t.Errorf("outline[1] = %+v", outline[1])
	}
}

func TestDocument_UnknownExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.bin", "\x00\x01")

	ix := NewIndex(root)
	outline, err := ix.Document(filepath.Join(root, "data.bin"), 0)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if outline != nil {
		t.Errorf("expected empty outline, got %+v", outline)
	}
}
