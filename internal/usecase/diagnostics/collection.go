// Package diagnostics stores per-file problem reports and aggregates them
// into a uniform, filterable shape. The collection is populated by the
// embedding host; records are produced transiently per query and never
// persisted.
package diagnostics

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"devgate/internal/domain"
)

// Collection is a goroutine-safe per-file diagnostic store.
type Collection struct {
	mu     sync.RWMutex
	byFile map[string][]domain.DiagnosticRecord
	bus    domain.EventBus
}

// NewCollection creates an empty diagnostic collection.
func NewCollection(bus domain.EventBus) *Collection {
	return &Collection{
		byFile: make(map[string][]domain.DiagnosticRecord),
		bus:    bus,
	}
}

// Set replaces the diagnostics for one file. An empty slice clears the file.
func (c *Collection) Set(path string, records []domain.DiagnosticRecord) {
	c.mu.Lock()
	if len(records) == 0 {
		delete(c.byFile, path)
	} else {
		stored := make([]domain.DiagnosticRecord, len(records))
		copy(stored, records)
		for i := range stored {
			stored[i].FilePath = path
		}
		c.byFile[path] = stored
	}
	c.mu.Unlock()

	c.emitUpdated(path)
}

// Clear removes all diagnostics for one file.
func (c *Collection) Clear(path string) {
	c.mu.Lock()
	delete(c.byFile, path)
	c.mu.Unlock()

	c.emitUpdated(path)
}

// ClearAll removes every stored diagnostic.
func (c *Collection) ClearAll() {
	c.mu.Lock()
	c.byFile = make(map[string][]domain.DiagnosticRecord)
	c.mu.Unlock()

	c.emitUpdated("")
}

// Collect returns the filtered record set. If path is non-empty only that
// file is inspected, otherwise the whole collection. Records are filtered
// by the severity set and sorted by file, then line. An empty result is
// success, not failure.
func (c *Collection) Collect(path string, severities []domain.Severity, includeSource bool) []domain.DiagnosticRecord {
	allowed := make(map[domain.Severity]bool, len(severities))
	for _, s := range severities {
		allowed[s] = true
	}

	c.mu.RLock()
	var out []domain.DiagnosticRecord
	if path != "" {
		out = filterRecords(c.byFile[path], allowed, includeSource, out)
	} else {
		for _, records := range c.byFile {
			out = filterRecords(records, allowed, includeSource, out)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Range.StartLine < out[j].Range.StartLine
	})
	return out
}

func filterRecords(records []domain.DiagnosticRecord, allowed map[domain.Severity]bool, includeSource bool, out []domain.DiagnosticRecord) []domain.DiagnosticRecord {
	for _, r := range records {
		if !allowed[r.Severity] {
			continue
		}
		if !includeSource {
			r.Source = ""
		}
		out = append(out, r)
	}
	return out
}

func (c *Collection) emitUpdated(path string) {
	if c.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"path": path})
	c.bus.Publish(context.Background(), domain.Event{
		Type:      domain.EventDiagnosticsUpdated,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
