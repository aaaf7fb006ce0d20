package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayState is the only configuration that survives a restart: whether
// the gateway is enabled and which port it binds. Mutated only by the
// lifecycle controller.
type GatewayState struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoadState reads the persisted gateway state. A missing file yields the
// given defaults.
func LoadState(path string, defaults GatewayState) (GatewayState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("read state: %w", err)
	}

	st := defaults
	if err := yaml.Unmarshal(data, &st); err != nil {
		return defaults, fmt.Errorf("parse state: %w", err)
	}
	return st, nil
}

// SaveState writes the gateway state atomically (write temp, rename).
func SaveState(path string, st GatewayState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
