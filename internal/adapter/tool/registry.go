package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"devgate/internal/domain"
)

// Registry holds named tools and runs the invocation pipeline.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]domain.Tool
	logger  *slog.Logger
	bus     domain.EventBus
	limiter *RateLimiter
}

// NewRegistry creates an empty tool registry. Tools are wrapped with schema
// validation on Register. bus may be nil.
func NewRegistry(logger *slog.Logger, bus domain.EventBus) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
		bus:    bus,
	}
}

// SetRateLimiter installs an invocation rate limiter. A nil limiter disables
// throttling.
func (r *Registry) SetRateLimiter(l *RateLimiter) {
	r.mu.Lock()
	r.limiter = l
	r.mu.Unlock()
}

// Register adds a tool, wrapped with schema validation so the tool body never
// sees invalid input. Registration fails on a duplicate name or a schema that
// does not compile.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicateTool, name)
	}

	wrapped, err := WithSchemaValidation(t)
	if err != nil {
		return domain.WrapOp("Registry.Register", err)
	}

	r.tools[name] = wrapped
	r.logger.Debug("tool registered", "tool", name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all registered tools sorted by name, so the advertised catalog
// is stable across calls.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Schemas returns all tool schemas sorted by name.
func (r *Registry) Schemas() []domain.ToolSchema {
	schemas := make([]domain.ToolSchema, 0)
	for _, t := range r.List() {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}

// Invoke runs a named tool through the full pipeline: rate limit, lookup,
// execute with panic containment, publish lifecycle events.
//
// An unknown tool returns an error; everything that happens inside a known
// tool — including a panic — is reported as a ToolResult so one misbehaving
// tool cannot take the transport down.
func (r *Registry) Invoke(ctx context.Context, name string, params json.RawMessage) (res *domain.ToolResult, err error) {
	r.mu.RLock()
	limiter := r.limiter
	r.mu.RUnlock()

	if limiter != nil && !limiter.Allow() {
		lerr := domain.NewDomainError("Registry.Invoke", domain.ErrLimitReached,
			"tool call rate limit exceeded, retry later")
		return ErrResult("[%s] %v", domain.ErrorCodeOf(lerr), lerr)
	}

	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r.emit(ctx, domain.EventToolCallStarted, map[string]any{"tool": name})

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			res, err = ErrResult("tool %s panicked: %v", name, rec)
		}
		isError := err != nil || (res != nil && res.IsError)
		r.emit(ctx, domain.EventToolCallCompleted, map[string]any{
			"tool":        name,
			"is_error":    isError,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	res, err = t.Execute(ctx, params)
	if err != nil {
		// Tool implementations report failures through the result; a raw
		// error here is a pipeline defect, still surfaced to the caller.
		r.logger.Warn("tool execution error", "tool", name, "error", err)
		return ErrResult("[%s] %v", domain.ErrorCodeOf(err), err)
	}
	if res == nil {
		return ErrResult("tool %s returned no result", name)
	}
	return res, nil
}

func (r *Registry) emit(ctx context.Context, eventType domain.EventType, payload map[string]any) {
	if r.bus == nil {
		return
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		data = []byte(fmt.Sprintf("%q", merr.Error()))
	}
	r.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}
