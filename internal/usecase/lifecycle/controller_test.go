package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"devgate/internal/infra/config"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway counts starts and stops, and can fail to bind.
type fakeGateway struct {
	port    int
	bindErr error
	starts  *atomic.Int32
	stops   *atomic.Int32
	running atomic.Bool
}

func (g *fakeGateway) Start(context.Context) error {
	if g.bindErr != nil {
		return g.bindErr
	}
	g.starts.Add(1)
	g.running.Store(true)
	return nil
}

func (g *fakeGateway) Stop(context.Context) error {
	g.stops.Add(1)
	g.running.Store(false)
	return nil
}

func (g *fakeGateway) BoundAddr() string { return "127.0.0.1:9999" }

type fakeFactory struct {
	starts  atomic.Int32
	stops   atomic.Int32
	built   atomic.Int32
	bindErr error
}

func (f *fakeFactory) factory(port int) Gateway {
	f.built.Add(1)
	return &fakeGateway{port: port, bindErr: f.bindErr, starts: &f.starts, stops: &f.stops}
}

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.yaml")
}

func TestEnable_Idempotent(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.factory, statePath(t), 9527, nil, nopLogger())
	ctx := context.Background()

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := c.Enable(ctx); err != nil {
		t.Fatalf("second enable: %v", err)
	}

	if f.starts.Load() != 1 {
		t.Errorf("starts = %d, want 1 (no second socket)", f.starts.Load())
	}
	if st := c.Status(); st.State != StateEnabled || st.Addr == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestDisable_Idempotent(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.factory, statePath(t), 9527, nil, nopLogger())
	ctx := context.Background()

	if err := c.Disable(ctx); err != nil {
		t.Fatalf("disable while disabled: %v", err)
	}

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := c.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := c.Disable(ctx); err != nil {
		t.Fatalf("second disable: %v", err)
	}

	if f.stops.Load() != 1 {
		t.Errorf("stops = %d, want 1", f.stops.Load())
	}
	if st := c.Status(); st.State != StateDisabled {
		t.Errorf("state = %s, want disabled", st.State)
	}
}

func TestEnable_BindFailureStaysDisabled(t *testing.T) {
	f := &fakeFactory{bindErr: errors.New("address in use")}
	path := statePath(t)
	c := NewController(f.factory, path, 9527, nil, nopLogger())

	err := c.Enable(context.Background())
	if err == nil {
		t.Fatal("expected bind failure")
	}
	if st := c.Status(); st.State != StateDisabled {
		t.Errorf("state = %s, want disabled after bind failure", st.State)
	}

	// The failed enable must not be persisted as enabled.
	st, err := config.LoadState(path, config.GatewayState{Enabled: false, Port: 9527})
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.Enabled {
		t.Error("bind failure must not persist enabled=true")
	}
}

func TestStatePersistedAcrossTransitions(t *testing.T) {
	f := &fakeFactory{}
	path := statePath(t)
	c := NewController(f.factory, path, 9527, nil, nopLogger())
	ctx := context.Background()

	if err := c.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	st, _ := config.LoadState(path, config.GatewayState{})
	if !st.Enabled || st.Port != 9527 {
		t.Errorf("persisted after enable = %+v", st)
	}

	if err := c.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}
	st, _ = config.LoadState(path, config.GatewayState{})
	if st.Enabled {
		t.Errorf("persisted after disable = %+v", st)
	}
}

func TestRestore_ReenablesFromPersistedState(t *testing.T) {
	path := statePath(t)
	if err := config.SaveState(path, config.GatewayState{Enabled: true, Port: 12345}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	f := &fakeFactory{}
	c := NewController(f.factory, path, 9527, nil, nopLogger())
	if err := c.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	st := c.Status()
	if st.State != StateEnabled {
		t.Errorf("state = %s, want enabled", st.State)
	}
	if st.Port != 12345 {
		t.Errorf("port = %d, want persisted 12345", st.Port)
	}
}

func TestRestore_DisabledStateStaysDown(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.factory, statePath(t), 9527, nil, nopLogger())

	if err := c.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if f.starts.Load() != 0 {
		t.Errorf("starts = %d, want 0", f.starts.Load())
	}
}

func TestSetPort_RejectedWhileEnabled(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.factory, statePath(t), 9527, nil, nopLogger())
	ctx := context.Background()

	if err := c.SetPort(8000); err != nil {
		t.Fatalf("set port while disabled: %v", err)
	}
	if err := c.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := c.SetPort(8001); err == nil {
		t.Error("expected SetPort to fail while enabled")
	}
}
