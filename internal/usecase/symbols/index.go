// Package symbols provides a lightweight definition scanner over the
// workspace. It is a capability implementation, not a compiler: symbols are
// recognized by per-language definition patterns, which is enough for an
// agent to orient itself in an unfamiliar tree.
package symbols

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"devgate/internal/domain"
)

// maxScanFileSize caps how large a file the scanner will read.
const maxScanFileSize = 1 << 20

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
}

type pattern struct {
	re   *regexp.Regexp
	kind domain.SymbolKind
	// group is the capture group holding the symbol name; container, if
	// nonzero, holds the enclosing receiver/class name.
	group     int
	container int
}

var langPatterns = map[string][]pattern{
	".go": {
		{re: regexp.MustCompile(`^func \((?:\w+ )?\*?(\w+)\) (\w+)\(`), kind: domain.SymbolMethod, group: 2, container: 1},
		{re: regexp.MustCompile(`^func (\w+)\(`), kind: domain.SymbolFunction, group: 1},
		{re: regexp.MustCompile(`^type (\w+)\b`), kind: domain.SymbolType, group: 1},
		{re: regexp.MustCompile(`^const (\w+)\b`), kind: domain.SymbolConstant, group: 1},
		{re: regexp.MustCompile(`^var (\w+)\b`), kind: domain.SymbolVariable, group: 1},
	},
	".py": {
		{re: regexp.MustCompile(`^\s*class (\w+)\b`), kind: domain.SymbolClass, group: 1},
		{re: regexp.MustCompile(`^\s*def (\w+)\(`), kind: domain.SymbolFunction, group: 1},
	},
	".js": {
		{re: regexp.MustCompile(`^\s*(?:export\s+)?class (\w+)\b`), kind: domain.SymbolClass, group: 1},
		{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function (\w+)\(`), kind: domain.SymbolFunction, group: 1},
		{re: regexp.MustCompile(`^\s*(?:export\s+)?const (\w+)\s*=`), kind: domain.SymbolConstant, group: 1},
	},
	".md": {
		{re: regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`), kind: domain.SymbolSection, group: 2},
	},
}

func init() {
	for _, ext := range []string{".ts", ".jsx", ".tsx", ".mjs"} {
		langPatterns[ext] = langPatterns[".js"]
	}
}

// Index scans workspace files for symbol definitions.
type Index struct {
	root string
}

// NewIndex creates an index over the given workspace root.
func NewIndex(root string) *Index {
	return &Index{root: root}
}

// Search returns up to max ranked symbol matches for the query.
// Matching is case-insensitive: exact name matches rank before prefix
// matches, which rank before substring matches.
func (ix *Index) Search(query string, max int) ([]domain.Symbol, error) {
	q := strings.ToLower(query)

	type scored struct {
		sym   domain.Symbol
		score int
	}
	var matches []scored

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		patterns, ok := langPatterns[filepath.Ext(path)]
		if !ok {
			return nil
		}

		rel, relErr := filepath.Rel(ix.root, path)
		if relErr != nil {
			rel = path
		}
		for _, entry := range scanFile(path, patterns) {
			name := strings.ToLower(entry.sym.Name)
			var score int
			switch {
			case name == q:
				score = 0
			case strings.HasPrefix(name, q):
				score = 1
			case strings.Contains(name, q):
				score = 2
			default:
				continue
			}
			entry.sym.Path = filepath.ToSlash(rel)
			matches = append(matches, scored{sym: entry.sym, score: score})
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapOp("SymbolIndex.Search", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		if matches[i].sym.Name != matches[j].sym.Name {
			return matches[i].sym.Name < matches[j].sym.Name
		}
		return matches[i].sym.Path < matches[j].sym.Path
	})

	if len(matches) > max {
		matches = matches[:max]
	}
	out := make([]domain.Symbol, len(matches))
	for i, m := range matches {
		out[i] = m.sym
	}
	return out, nil
}

// Document returns the hierarchical symbol outline of one file. Nesting
// follows indentation (heading level for markdown). maxDepth <= 0 means
// unlimited; maxDepth == 1 keeps only top-level symbols.
func (ix *Index) Document(path string, maxDepth int) ([]domain.DocumentSymbol, error) {
	patterns, ok := langPatterns[filepath.Ext(path)]
	if !ok {
		return nil, nil // unknown file type: empty outline, not an error
	}

	entries := scanFile(path, patterns)
	if entries == nil {
		if _, err := os.Stat(path); err != nil {
			return nil, domain.NewDomainError("SymbolIndex.Document", domain.ErrNotFound, err.Error())
		}
	}

	var roots []domain.DocumentSymbol
	// Stack of pointers to the open symbol at each depth.
	type frame struct {
		depth int
		node  *domain.DocumentSymbol
	}
	var stack []frame

	for _, e := range entries {
		node := domain.DocumentSymbol{Name: e.sym.Name, Kind: e.sym.Kind, Line: e.sym.Line}

		for len(stack) > 0 && stack[len(stack)-1].depth >= e.depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
			stack = append(stack, frame{depth: e.depth, node: &roots[len(roots)-1]})
			continue
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, node)
		stack = append(stack, frame{depth: e.depth, node: &parent.Children[len(parent.Children)-1]})
	}

	if maxDepth > 0 {
		roots = pruneDepth(roots, maxDepth)
	}
	return roots, nil
}

type scanEntry struct {
	sym   domain.Symbol
	depth int
}

func scanFile(path string, patterns []pattern) []scanEntry {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxScanFileSize {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []scanEntry
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanFileSize)
	for scanner.Scan() {
		line := scanner.Text()
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			sym := domain.Symbol{Name: m[p.group], Kind: p.kind, Line: lineNo}
			if p.container > 0 {
				sym.Container = m[p.container]
			}
			entries = append(entries, scanEntry{sym: sym, depth: lineDepth(line, p.kind, m)})
			break
		}
		lineNo++
	}
	return entries
}

// lineDepth derives a nesting depth: heading level for markdown sections,
// indentation width for code.
func lineDepth(line string, kind domain.SymbolKind, m []string) int {
	if kind == domain.SymbolSection {
		return len(m[1]) - 1
	}
	depth := 0
	for _, r := range line {
		switch r {
		case ' ':
			depth++
		case '\t':
			depth += 4
		default:
			return depth
		}
	}
	return depth
}

func pruneDepth(nodes []domain.DocumentSymbol, remaining int) []domain.DocumentSymbol {
	if remaining <= 1 {
		for i := range nodes {
			nodes[i].Children = nil
		}
		return nodes
	}
	for i := range nodes {
		nodes[i].Children = pruneDepth(nodes[i].Children, remaining-1)
	}
	return nodes
}
