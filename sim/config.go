package sim

import (
	"fmt"

	"github.com/BurntSushi/toml"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/plugin"
)

// PluginConfig describes one plugin's spawn configuration, as parsed
// from a simulation configuration file or built up programmatically.
type PluginConfig struct {
	Type plugin.Type `toml:"-"`
	// TypeName is the TOML-facing spelling of Type ("frontend",
	// "operator", "backend"); Type is derived from it during Load.
	TypeName string            `toml:"type"`
	Name     string            `toml:"name"`
	Path     string            `toml:"path"`
	Args     []string          `toml:"args"`
	Env      map[string]string `toml:"env"`

	// Callbacks, when set, makes this plugin run in-process instead
	// of spawning Path as a subprocess: Driver.spawnOne wires a
	// plugin.Runtime directly to a transport.InProcessChannel pair
	// using these callbacks, and Path/Args/Env are ignored. This is
	// spec.md §3's "in-process + callback bundle" transport variant
	// of a plugin configuration — the bundle may be hand-written Go
	// (as in tests) or produced by wasmrt.Callbacks over a WASM guest.
	Callbacks *plugin.Callbacks `toml:"-"`
}

// Config is the top-level simulation configuration: a master seed and
// an ordered plugin pipeline (frontend first, backend last).
type Config struct {
	MasterSeed uint64         `toml:"master_seed"`
	Plugins    []PluginConfig `toml:"plugins"`
}

func parseTypeName(s string) (plugin.Type, error) {
	switch s {
	case "frontend":
		return plugin.Frontend, nil
	case "operator":
		return plugin.Operator, nil
	case "backend":
		return plugin.Backend, nil
	default:
		return 0, dqerrors.InvalidArgument("unknown plugin type %q", s)
	}
}

// LoadConfig reads and validates a simulation configuration file in
// TOML form.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, dqerrors.InvalidArgument("failed to parse simulation config %s: %s", path, err)
	}
	for i := range cfg.Plugins {
		t, err := parseTypeName(cfg.Plugins[i].TypeName)
		if err != nil {
			return nil, err
		}
		cfg.Plugins[i].Type = t
	}
	if err := ValidatePipeline(cfg.Plugins); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidatePipeline enforces the plugin-configuration-list invariants:
// exactly one frontend, exactly one backend, and unique plugin names
// (after default-name assignment has run).
func ValidatePipeline(plugins []PluginConfig) error {
	var frontends, backends int
	for _, p := range plugins {
		switch p.Type {
		case plugin.Frontend:
			frontends++
		case plugin.Backend:
			backends++
		}
	}
	if frontends != 1 {
		return dqerrors.InvalidArgument("pipeline must have exactly one frontend, got %d", frontends)
	}
	if backends != 1 {
		return dqerrors.InvalidArgument("pipeline must have exactly one backend, got %d", backends)
	}

	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		name := p.Name
		if name == "" {
			continue // assigned later by AssignDefaultNames
		}
		if seen[name] {
			return dqerrors.InvalidArgument("duplicate plugin name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// AssignDefaultNames fills in names for plugins whose Name is empty:
// "front" for the frontend, "back" for the backend, "op1", "op2", …
// for operators in pipeline order.
func AssignDefaultNames(plugins []PluginConfig) error {
	opIndex := 0
	seen := make(map[string]bool, len(plugins))
	for i := range plugins {
		if plugins[i].Name == "" {
			switch plugins[i].Type {
			case plugin.Frontend:
				plugins[i].Name = "front"
			case plugin.Backend:
				plugins[i].Name = "back"
			case plugin.Operator:
				opIndex++
				plugins[i].Name = fmt.Sprintf("op%d", opIndex)
			}
		}
		if seen[plugins[i].Name] {
			return dqerrors.InvalidArgument("duplicate plugin name %q", plugins[i].Name)
		}
		seen[plugins[i].Name] = true
	}
	return nil
}
