package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkspaceConfig locates the workspace exposed through the gateway.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// GatewayConfig holds transport settings. The gateway always binds to the
// loopback interface; only the port is configurable.
type GatewayConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	StatePath string `yaml:"state_path"` // persisted enabled flag + port
}

// ConsoleConfig holds settings for the interactive console session.
type ConsoleConfig struct {
	Shell           string        `yaml:"shell"`
	Integration     bool          `yaml:"integration"`      // structured completion markers
	SettleInterval  time.Duration `yaml:"settle_interval"`  // degraded-mode wait
	CommandTimeout  time.Duration `yaml:"command_timeout"`  // integration-mode cap
	OutputBufferMax int           `yaml:"output_buffer_max"`
}

// RateLimitConfig throttles tool invocations when enabled.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`  // calls per window
	Window  time.Duration `yaml:"window"`
}

// ToolsConfig holds per-tool settings.
type ToolsConfig struct {
	ReadMaxCharacters int             `yaml:"read_max_characters"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // noop, stdout
}

// Config is the top-level application configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Console   ConsoleConfig   `yaml:"console"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Workspace: WorkspaceConfig{Root: "."},
		Gateway: GatewayConfig{
			Enabled:   false,
			Port:      9527,
			StatePath: "./devgate.state.yaml",
		},
		Console: ConsoleConfig{
			Shell:           defaultShell(),
			Integration:     true,
			SettleInterval:  2 * time.Second,
			CommandTimeout:  60 * time.Second,
			OutputBufferMax: 1024 * 1024,
		},
		Tools: ToolsConfig{
			ReadMaxCharacters: 100000,
			RateLimit: RateLimitConfig{
				Enabled: false,
				Limit:   30,
				Window:  time.Minute,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Load reads a YAML config file and applies env var overrides.
// A missing file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps DEVGATE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVGATE_WORKSPACE_ROOT"); v != "" {
		cfg.Workspace.Root = v
	}
	if v := os.Getenv("DEVGATE_GATEWAY_ENABLED"); v == "true" {
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("DEVGATE_GATEWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p >= 0 && p <= 65535 {
			cfg.Gateway.Port = p
		}
	}
	if v := os.Getenv("DEVGATE_CONSOLE_SHELL"); v != "" {
		cfg.Console.Shell = v
	}
	if v := os.Getenv("DEVGATE_CONSOLE_INTEGRATION"); v == "false" {
		cfg.Console.Integration = false
	}
	if v := os.Getenv("DEVGATE_CONSOLE_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Console.CommandTimeout = d
		}
	}
	if v := os.Getenv("DEVGATE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DEVGATE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("DEVGATE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("DEVGATE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// Validate checks config invariants that would otherwise surface as
// confusing runtime failures.
func Validate(cfg *Config) error {
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", cfg.Gateway.Port)
	}
	if cfg.Console.Shell == "" {
		return fmt.Errorf("console.shell must not be empty")
	}
	if cfg.Console.SettleInterval <= 0 {
		return fmt.Errorf("console.settle_interval must be positive")
	}
	if cfg.Tools.ReadMaxCharacters <= 0 {
		return fmt.Errorf("tools.read_max_characters must be positive")
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format %q not supported", cfg.Logger.Format)
	}
	if _, err := filepath.Abs(cfg.Workspace.Root); err != nil {
		return fmt.Errorf("workspace.root: %w", err)
	}
	return nil
}
