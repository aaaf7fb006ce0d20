package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"devgate/internal/domain"
)

type panicTool struct{ stubTool }

func (p *panicTool) Execute(context.Context, json.RawMessage) (*domain.ToolResult, error) {
	panic("boom")
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)

	if err := reg.Register(&stubTool{name: "dup", result: TextResult("ok")}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := reg.Register(&stubTool{name: "dup", result: TextResult("ok")})
	if !errors.Is(err, domain.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistry_Register_BadSchemaRejected(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)

	err := reg.Register(&stubTool{name: "bad", schema: json.RawMessage(`{"type": "invalid_type"}`)})
	if err == nil {
		t.Fatal("expected registration to fail for an uncompilable schema")
	}
	if _, gerr := reg.Get("bad"); !errors.Is(gerr, domain.ErrToolNotFound) {
		t.Error("tool with bad schema must not be registered")
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)

	_, err := reg.Get("missing")
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	if domain.ErrorCodeOf(err) != domain.CodeToolNotFound {
		t.Errorf("code = %s, want %s", domain.ErrorCodeOf(err), domain.CodeToolNotFound)
	}
}

func TestRegistry_List_Sorted(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(&stubTool{name: name, result: TextResult("ok")}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	tools := reg.List()
	if len(tools) != 3 {
		t.Fatalf("len = %d, want 3", len(tools))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, tl := range tools {
		if tl.Name() != want[i] {
			t.Errorf("tools[%d] = %q, want %q", i, tl.Name(), want[i])
		}
	}
}

func TestRegistry_Invoke_Success(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)
	if err := reg.Register(&stubTool{name: "echo", result: TextResult("hello")}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Text() != "hello" {
		t.Errorf("result = %q, want %q", res.Text(), "hello")
	}
}

func TestRegistry_Invoke_UnknownTool(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)

	_, err := reg.Invoke(context.Background(), "nope", nil)
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistry_Invoke_PanicContained(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)
	if err := reg.Register(&panicTool{stubTool{name: "explode"}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := reg.Invoke(context.Background(), "explode", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("panic must surface as an error result, got error %v", err)
	}
	if !res.IsError || !strings.Contains(res.Text(), "panicked") {
		t.Errorf("expected panic error result, got: %+v", res)
	}
}

func TestRegistry_Invoke_RateLimited(t *testing.T) {
	reg := NewRegistry(nopLogger(), nil)
	if err := reg.Register(&stubTool{name: "limited", result: TextResult("ok")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.SetRateLimiter(NewRateLimiter(2, time.Hour))

	for i := 0; i < 2; i++ {
		res, err := reg.Invoke(context.Background(), "limited", nil)
		if err != nil || res.IsError {
			t.Fatalf("call %d should be allowed: res=%+v err=%v", i, res, err)
		}
	}

	res, err := reg.Invoke(context.Background(), "limited", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Text(), string(domain.CodeLimitReached)) {
		t.Errorf("expected rate limit error result, got: %s", res.Text())
	}
}

func TestRegistry_Invoke_PublishesLifecycleEvents(t *testing.T) {
	bus := &recordingBus{}
	reg := NewRegistry(nopLogger(), bus)
	if err := reg.Register(&stubTool{name: "observed", result: TextResult("ok")}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := reg.Invoke(context.Background(), "observed", nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	types := bus.types()
	if len(types) != 2 || types[0] != domain.EventToolCallStarted || types[1] != domain.EventToolCallCompleted {
		t.Errorf("events = %v, want [started completed]", types)
	}
}
