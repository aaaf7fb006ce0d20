package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devgate/internal/adapter/gateway"
	"devgate/internal/adapter/tool"
	"devgate/internal/domain"
	"devgate/internal/infra/config"
	"devgate/internal/infra/logger"
	"devgate/internal/infra/tracer"
	"devgate/internal/security"
	"devgate/internal/usecase/command"
	"devgate/internal/usecase/console"
	"devgate/internal/usecase/diagnostics"
	"devgate/internal/usecase/editor"
	"devgate/internal/usecase/eventbus"
	"devgate/internal/usecase/lifecycle"
	"devgate/internal/usecase/symbols"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`devgate - workspace tool gateway

USAGE:
    devgate [FLAGS]

    Exposes the workspace (files, symbols, diagnostics, shell, commands)
    to agents over an MCP endpoint bound to the loopback interface.

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./devgate.yaml)
    --enable           Enable the gateway on startup, regardless of
                       config and persisted state

CONFIGURATION:
    Config file: ./devgate.yaml
    Environment: DEVGATE_* variables override config`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("DEVGATE_CONFIG"); p != "" {
		return p
	}
	return "devgate.yaml"
}

func hasFlag(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Workspace sandbox
	sandbox, err := security.NewSandbox(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}

	// 4. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 5. Workspace components
	consoleMgr := console.NewManager(console.Config{
		Shell:           cfg.Console.Shell,
		WorkDir:         sandbox.Root(),
		Integration:     cfg.Console.Integration,
		SettleInterval:  cfg.Console.SettleInterval,
		CommandTimeout:  cfg.Console.CommandTimeout,
		OutputBufferMax: cfg.Console.OutputBufferMax,
	}, bus, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		consoleMgr.Close(closeCtx)
	}()

	backend := tool.NewLocalFilesystemBackend()
	lineEditor := editor.NewLineEditor(backend)
	diags := diagnostics.NewCollection(bus)
	symbolIndex := symbols.NewIndex(sandbox.Root())
	commands := command.NewRegistry()

	// 6. Tool registry
	registry := tool.NewRegistry(log, bus)
	if cfg.Tools.RateLimit.Enabled {
		registry.SetRateLimiter(tool.NewRateLimiter(cfg.Tools.RateLimit.Limit, cfg.Tools.RateLimit.Window))
	}

	catalog := []domain.Tool{
		tool.NewListFilesTool(backend, sandbox, log),
		tool.NewReadFileTool(backend, sandbox, log, cfg.Tools.ReadMaxCharacters),
		tool.NewCreateFileTool(backend, sandbox, bus, log),
		tool.NewReplaceLinesTool(lineEditor, sandbox, bus, log),
		tool.NewExecuteShellCommandTool(consoleMgr, sandbox, log),
		tool.NewGetDiagnosticsTool(diags, sandbox, log),
		tool.NewSearchSymbolsTool(symbolIndex, log),
		tool.NewGetDocumentSymbolsTool(symbolIndex, sandbox, log),
		tool.NewListCommandsTool(commands, log),
		tool.NewExecuteCommandTool(commands, log),
	}
	for _, t := range catalog {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	// 7. Lifecycle controller
	controller := lifecycle.NewController(
		func(port int) lifecycle.Gateway {
			return gateway.NewServer(registry, bus, port, log)
		},
		cfg.Gateway.StatePath, cfg.Gateway.Port, bus, log,
	)

	registerHostCommands(commands, consoleMgr, diags, controller)

	// 8. Bring the gateway up: explicit config/flag wins, otherwise the
	// persisted state from the previous run decides.
	switch {
	case hasFlag("--enable") || cfg.Gateway.Enabled:
		if err := controller.Enable(ctx); err != nil {
			return err
		}
	default:
		if err := controller.Restore(ctx); err != nil {
			log.Warn("gateway state restore failed", "error", err)
		}
	}

	st := controller.Status()
	log.Info("devgate ready",
		"workspace", sandbox.Root(),
		"tools", len(registry.List()),
		"gateway", string(st.State),
		"addr", st.Addr,
	)

	// 9. Graceful shutdown
	sigCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-sigCtx.Done()

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return controller.Disable(shutdownCtx)
}

// registerHostCommands wires the built-in host commands exposed through
// list_commands / execute_command.
func registerHostCommands(
	commands *command.Registry,
	consoleMgr *console.Manager,
	diags *diagnostics.Collection,
	controller *lifecycle.Controller,
) {
	commands.Register("console.reset", "Kill the interactive console; a fresh session starts on the next command",
		func(ctx context.Context, _ []string) (string, error) {
			consoleMgr.Close(ctx)
			return "console session reset", nil
		})

	commands.Register("console.status", "Report the interactive console session, if one is running",
		func(_ context.Context, _ []string) (string, error) {
			info, ok := consoleMgr.Session()
			if !ok {
				return "no console session", nil
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		})

	commands.Register("diagnostics.clear", "Discard all stored diagnostics",
		func(_ context.Context, _ []string) (string, error) {
			diags.ClearAll()
			return "diagnostics cleared", nil
		})

	commands.Register("gateway.status", "Report the gateway lifecycle state",
		func(_ context.Context, _ []string) (string, error) {
			data, err := json.MarshalIndent(controller.Status(), "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		})
}
