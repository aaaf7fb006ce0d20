package domain

import (
	"context"
	"encoding/json"
)

// ContentKind tags a single block of tool result content.
type ContentKind string

const (
	// ContentText is plain text content.
	ContentText ContentKind = "text"
	// ContentBase64 is binary content, base64-encoded.
	ContentBase64 ContentKind = "base64"
)

// Content is one typed block of a tool result. Results are always one or
// more blocks, never raw host objects.
type Content struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text"`
}

// ToolSchema describes a tool and its JSON-Schema input contract.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolResult is the outcome of executing a tool. IsError marks a reported
// failure; the content then carries a human-readable message.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"is_error"`
}

// Text returns all text blocks joined with newlines.
func (r *ToolResult) Text() string {
	switch len(r.Content) {
	case 0:
		return ""
	case 1:
		return r.Content[0].Text
	}
	out := r.Content[0].Text
	for _, c := range r.Content[1:] {
		out += "\n" + c.Text
	}
	return out
}

// Tool is the interface every gateway tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
