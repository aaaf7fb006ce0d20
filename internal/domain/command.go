package domain

// HostCommand describes a named command exposed by the embedding host
// (the gateway's equivalent of an editor command palette entry).
type HostCommand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
