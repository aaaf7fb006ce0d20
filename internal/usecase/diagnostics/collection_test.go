package diagnostics

import (
	"testing"

	"devgate/internal/domain"
)

func record(path string, sev domain.Severity, line int, msg string) domain.DiagnosticRecord {
	return domain.DiagnosticRecord{
		FilePath: path,
		Severity: sev,
		Message:  msg,
		Source:   "lint",
		Range:    domain.Range{StartLine: line},
	}
}

func defaultSeverities() []domain.Severity {
	return []domain.Severity{domain.SeverityError, domain.SeverityWarning}
}

func TestCollect_SeverityFilter(t *testing.T) {
	c := NewCollection(nil)
	c.Set("main.go", []domain.DiagnosticRecord{
		record("main.go", domain.SeverityError, 1, "boom"),
		record("main.go", domain.SeverityWarning, 2, "careful"),
		record("main.go", domain.SeverityHint, 3, "style"),
		record("main.go", domain.SeverityInformation, 4, "fyi"),
	})

	got := c.Collect("", defaultSeverities(), true)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (hint and information filtered)", len(got))
	}
	for _, r := range got {
		if r.Severity != domain.SeverityError && r.Severity != domain.SeverityWarning {
			t.Errorf("unexpected severity %s", r.Severity)
		}
	}
}

func TestCollect_PathScoping(t *testing.T) {
	c := NewCollection(nil)
	c.Set("a.go", []domain.DiagnosticRecord{record("a.go", domain.SeverityError, 1, "a")})
	c.Set("b.go", []domain.DiagnosticRecord{record("b.go", domain.SeverityError, 1, "b")})

	got := c.Collect("a.go", defaultSeverities(), true)
	if len(got) != 1 || got[0].FilePath != "a.go" {
		t.Errorf("got %+v, want only a.go", got)
	}

	all := c.Collect("", defaultSeverities(), true)
	if len(all) != 2 {
		t.Errorf("workspace-wide len = %d, want 2", len(all))
	}
}

func TestCollect_SortedByFileThenLine(t *testing.T) {
	c := NewCollection(nil)
	c.Set("z.go", []domain.DiagnosticRecord{record("z.go", domain.SeverityError, 1, "z")})
	c.Set("a.go", []domain.DiagnosticRecord{
		record("a.go", domain.SeverityError, 9, "late"),
		record("a.go", domain.SeverityError, 2, "early"),
	})

	got := c.Collect("", defaultSeverities(), true)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].FilePath != "a.go" || got[0].Range.StartLine != 2 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Range.StartLine != 9 || got[2].FilePath != "z.go" {
		t.Errorf("order wrong: %+v", got)
	}
}

func TestCollect_IncludeSource(t *testing.T) {
	c := NewCollection(nil)
	c.Set("a.go", []domain.DiagnosticRecord{record("a.go", domain.SeverityError, 1, "a")})

	with := c.Collect("", defaultSeverities(), true)
	if with[0].Source != "lint" {
		t.Errorf("source = %q, want lint", with[0].Source)
	}
	without := c.Collect("", defaultSeverities(), false)
	if without[0].Source != "" {
		t.Errorf("source = %q, want stripped", without[0].Source)
	}
}

func TestSet_EmptyClears(t *testing.T) {
	c := NewCollection(nil)
	c.Set("a.go", []domain.DiagnosticRecord{record("a.go", domain.SeverityError, 1, "a")})
	c.Set("a.go", nil)

	if got := c.Collect("", defaultSeverities(), true); len(got) != 0 {
		t.Errorf("len = %d, want 0 after clearing set", len(got))
	}
}

func TestClearAll(t *testing.T) {
	c := NewCollection(nil)
	c.Set("a.go", []domain.DiagnosticRecord{record("a.go", domain.SeverityError, 1, "a")})
	c.Set("b.go", []domain.DiagnosticRecord{record("b.go", domain.SeverityError, 1, "b")})
	c.ClearAll()

	if got := c.Collect("", defaultSeverities(), true); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestCollect_EmptyIsSuccess(t *testing.T) {
	c := NewCollection(nil)

	got := c.Collect("anything.go", defaultSeverities(), true)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
