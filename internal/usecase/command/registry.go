// Package command exposes named host-side commands — the gateway's
// equivalent of an editor command palette — for discovery and execution.
package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"devgate/internal/domain"
)

// Func is the implementation of one host command. It returns a short
// confirmation message for the caller.
type Func func(ctx context.Context, args []string) (string, error)

type entry struct {
	info domain.HostCommand
	fn   Func
}

// Registry holds named host commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]entry
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]entry)}
}

// Register adds a command. Registering an existing name replaces it.
func (r *Registry) Register(name, description string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = entry{
		info: domain.HostCommand{Name: name, Description: description},
		fn:   fn,
	}
}

// List returns commands whose name contains filter (empty matches all),
// sorted by name and truncated to limit when limit > 0.
func (r *Registry) List(filter string, limit int) []domain.HostCommand {
	r.mu.RLock()
	out := make([]domain.HostCommand, 0, len(r.commands))
	f := strings.ToLower(filter)
	for name, e := range r.commands {
		if f != "" && !strings.Contains(strings.ToLower(name), f) {
			continue
		}
		out = append(out, e.info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Execute runs a named command.
func (r *Registry) Execute(ctx context.Context, name string, args []string) (string, error) {
	r.mu.RLock()
	e, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return "", domain.NewDomainError("CommandRegistry.Execute", domain.ErrCommandNotFound, name)
	}
	return e.fn(ctx, args)
}
