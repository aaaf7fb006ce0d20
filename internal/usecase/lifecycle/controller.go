// Package lifecycle owns the gateway's enable/disable state machine.
//
// Transitions run under a single mutex, so concurrent toggles serialize
// rather than race: Disabled -> Enabling -> Enabled -> Disabling -> Disabled.
// The enabled flag and port are persisted after every successful transition
// so the gateway comes back in the same state after a restart.
package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"devgate/internal/domain"
	"devgate/internal/infra/config"
)

// State is the controller's current position in the toggle state machine.
type State string

const (
	StateDisabled  State = "disabled"
	StateEnabling  State = "enabling"
	StateEnabled   State = "enabled"
	StateDisabling State = "disabling"
)

// Gateway is the transport the controller turns on and off.
type Gateway interface {
	// Start binds the listener synchronously and serves in the background.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	BoundAddr() string
}

// Factory builds a gateway bound to the given port.
type Factory func(port int) Gateway

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State State  `json:"state"`
	Port  int    `json:"port"`
	Addr  string `json:"addr,omitempty"` // bound address while enabled
}

// Controller drives gateway enable/disable transitions.
type Controller struct {
	factory   Factory
	statePath string
	bus       domain.EventBus
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	port  int
	gw    Gateway
}

// NewController creates a controller starting in the Disabled state.
func NewController(factory Factory, statePath string, port int, bus domain.EventBus, logger *slog.Logger) *Controller {
	return &Controller{
		factory:   factory,
		statePath: statePath,
		bus:       bus,
		logger:    logger,
		state:     StateDisabled,
		port:      port,
	}
}

// Restore applies the persisted state: if the gateway was enabled when the
// process last ran, it is enabled again on the persisted port.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	st, err := config.LoadState(c.statePath, config.GatewayState{Enabled: false, Port: c.port})
	if err != nil {
		c.mu.Unlock()
		return domain.WrapOp("Lifecycle.Restore", err)
	}
	c.port = st.Port
	c.mu.Unlock()

	if st.Enabled {
		return c.Enable(ctx)
	}
	return nil
}

// Enable turns the gateway on. Enabling an already-enabled gateway is a
// no-op: the running listener is kept, no second socket is bound. A bind
// failure leaves the controller Disabled and is not persisted.
func (c *Controller) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateEnabled {
		return nil
	}

	c.state = StateEnabling
	gw := c.factory(c.port)
	if err := gw.Start(ctx); err != nil {
		c.state = StateDisabled
		c.logger.Error("gateway enable failed", "port", c.port, "error", err)
		return domain.WrapOp("Lifecycle.Enable", err)
	}

	c.gw = gw
	c.state = StateEnabled
	c.persistLocked(true)
	c.logger.Info("gateway enabled", "addr", gw.BoundAddr())
	c.emitLocked(ctx, domain.EventGatewayEnabled)
	return nil
}

// Disable turns the gateway off. Disabling an already-disabled gateway is a
// no-op. The console session is left alone: it belongs to the workspace, not
// to the transport.
func (c *Controller) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisabled {
		return nil
	}

	c.state = StateDisabling
	var err error
	if c.gw != nil {
		err = c.gw.Stop(ctx)
		c.gw = nil
	}
	c.state = StateDisabled
	c.persistLocked(false)
	c.logger.Info("gateway disabled")
	c.emitLocked(ctx, domain.EventGatewayDisabled)
	return domain.WrapOp("Lifecycle.Disable", err)
}

// SetPort changes the port used by the next Enable. Rejected while the
// gateway is running.
func (c *Controller) SetPort(port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisabled {
		return domain.NewDomainError("Lifecycle.SetPort", domain.ErrInvalidInput,
			"port can only change while the gateway is disabled")
	}
	c.port = port
	return nil
}

// Status returns the current state snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Port: c.port}
	if c.state == StateEnabled && c.gw != nil {
		st.Addr = c.gw.BoundAddr()
	}
	return st
}

func (c *Controller) persistLocked(enabled bool) {
	if c.statePath == "" {
		return
	}
	if err := config.SaveState(c.statePath, config.GatewayState{Enabled: enabled, Port: c.port}); err != nil {
		// State persistence is best-effort; the gateway itself is unaffected.
		c.logger.Warn("persist gateway state failed", "error", err)
	}
}

func (c *Controller) emitLocked(ctx context.Context, eventType domain.EventType) {
	if c.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{"port": c.port})
	c.bus.Publish(ctx, domain.Event{Type: eventType, Timestamp: time.Now(), Payload: payload})
}
