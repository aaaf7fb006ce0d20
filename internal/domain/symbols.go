package domain

// SymbolKind classifies a workspace symbol.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolType     SymbolKind = "type"
	SymbolClass    SymbolKind = "class"
	SymbolConstant SymbolKind = "constant"
	SymbolVariable SymbolKind = "variable"
	SymbolSection  SymbolKind = "section"
)

// Symbol is one ranked workspace symbol match.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Path      string     `json:"path"` // workspace-relative
	Line      int        `json:"line"` // zero-based
	Container string     `json:"container,omitempty"`
}

// DocumentSymbol is a node in a file's hierarchical symbol outline.
type DocumentSymbol struct {
	Name     string           `json:"name"`
	Kind     SymbolKind       `json:"kind"`
	Line     int              `json:"line"`
	Children []DocumentSymbol `json:"children,omitempty"`
}
