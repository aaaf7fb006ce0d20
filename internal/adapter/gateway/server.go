// Package gateway exposes the tool registry over HTTP on the loopback
// interface. Tool traffic speaks the Model Context Protocol on a single
// /mcp endpoint (streamable HTTP, stateless); a companion /events WebSocket
// streams gateway events to observers.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"devgate/internal/domain"
)

const (
	serverName    = "devgate"
	serverVersion = "0.1.0"
)

// methodNotAllowedBody is the JSON-RPC error envelope answered to any
// non-POST request on the tool endpoint.
const methodNotAllowedBody = `{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"Method not allowed"}}`

// ToolInvoker is the registry surface the gateway needs: the advertised
// catalog and the invocation pipeline.
type ToolInvoker interface {
	Schemas() []domain.ToolSchema
	Invoke(ctx context.Context, name string, params json.RawMessage) (*domain.ToolResult, error)
}

// eventClient tracks a single /events WebSocket connection.
type eventClient struct {
	ws *websocket.Conn
	ch chan domain.Event
}

// Server is the loopback HTTP gateway.
type Server struct {
	tools  ToolInvoker
	bus    domain.EventBus
	logger *slog.Logger
	addr   string

	httpSrv   *http.Server
	boundAddr string
	clients   sync.Map // connID (uint64) -> *eventClient
	nextID    atomic.Uint64
	unsubAll  func()

	serveErr chan error
}

// NewServer creates a gateway bound to 127.0.0.1 on the given port.
// Port 0 asks the OS for an ephemeral port; BoundAddr reports the result.
func NewServer(tools ToolInvoker, bus domain.EventBus, port int, logger *slog.Logger) *Server {
	return &Server{
		tools:    tools,
		bus:      bus,
		logger:   logger,
		addr:     fmt.Sprintf("127.0.0.1:%d", port),
		serveErr: make(chan error, 1),
	}
}

// Start binds the listener synchronously — a bind failure is reported to the
// caller, not logged from a goroutine — then serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.postOnly(server.NewStreamableHTTPServer(
		s.buildMCPServer(),
		server.WithStateLess(true),
	)))
	mux.HandleFunc("/events", s.handleEvents)

	s.httpSrv = &http.Server{Handler: mux}

	if s.bus != nil {
		s.unsubAll = s.bus.SubscribeAll(func(_ context.Context, event domain.Event) {
			s.clients.Range(func(_, value any) bool {
				cc := value.(*eventClient)
				select {
				case cc.ch <- event:
				default:
					s.logger.Warn("gateway: dropped event for slow client")
				}
				return true
			})
		})
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("gateway serve", "error", err)
			s.serveErr <- err
		}
	}()
	return nil
}

// Stop shuts the gateway down: event fan-out is detached, open event streams
// are closed, in-flight tool calls get a grace period.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubAll != nil {
		s.unsubAll()
		s.unsubAll = nil
	}

	s.clients.Range(func(key, value any) bool {
		cc := value.(*eventClient)
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

// buildMCPServer registers every tool in the catalog with the MCP server,
// bridging each call into the registry's invocation pipeline.
func (s *Server) buildMCPServer() *server.MCPServer {
	mcpSrv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
	)

	for _, ts := range s.tools.Schemas() {
		name := ts.Name
		mcpSrv.AddTool(
			mcp.NewToolWithRawSchema(ts.Name, ts.Description, ts.InputSchema),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				params, err := json.Marshal(req.GetArguments())
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
				}

				res, err := s.tools.Invoke(ctx, name, params)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				content := make([]mcp.Content, 0, len(res.Content))
				for _, c := range res.Content {
					content = append(content, mcp.NewTextContent(c.Text))
				}
				return &mcp.CallToolResult{Content: content, IsError: res.IsError}, nil
			},
		)
	}
	return mcpSrv
}

// postOnly rejects any non-POST request with 405 and a JSON-RPC error
// envelope, so protocol clients get a parseable answer instead of a plain
// text error page.
func (s *Server) postOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.logger.Debug("gateway: rejected tool request",
				"method", r.Method, "code", domain.ErrorCodeOf(domain.ErrMethodNotAllowed))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			fmt.Fprint(w, methodNotAllowedBody)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleEvents upgrades to WebSocket and streams gateway events until the
// client disconnects. The stream is one-way; client frames are discarded.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &eventClient{ws: ws, ch: make(chan domain.Event, 64)}
	s.clients.Store(connID, cc)
	s.logger.Info("event stream connected", "conn_id", connID)

	// CloseRead discards inbound frames and cancels the context when the
	// peer goes away.
	ctx := ws.CloseRead(r.Context())

	defer func() {
		s.clients.Delete(connID)
		ws.Close(websocket.StatusNormalClosure, "")
		s.logger.Info("event stream disconnected", "conn_id", connID)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-cc.ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, ws, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
