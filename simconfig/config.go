// Package simconfig loads a run's hujson configuration file and the two
// vector input files it names into main memory's fixed layout.
package simconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"mesisim/simerr"
)

// RunConfig names everything a run needs: per-PE program files (or, for
// the dot-product scenario, one shared program plus per-PE register
// presets), the two vector input files, and CLI-overridable defaults.
type RunConfig struct {
	Programs []string `json:"programs,omitempty"`

	SharedProgram   string     `json:"shared_program,omitempty"`
	RegisterPresets [][]uint64 `json:"register_presets,omitempty"`

	VectorA string `json:"vector_a"`
	VectorB string `json:"vector_b"`

	Step bool `json:"step,omitempty"`
	TUI  bool `json:"tui,omitempty"`
}

// Load reads and parses a .hujson run configuration file: comments and
// trailing commas are tolerated via hujson.Standardize before the result
// is handed to encoding/json.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerr.IOError{Path: path, Err: err}
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("%s: invalid hujson: %v", path, err)}
	}

	var cfg RunConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("%s: invalid config: %v", path, err)}
	}

	if cfg.VectorA == "" || cfg.VectorB == "" {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("%s: vector_a and vector_b are required", path)}
	}
	if len(cfg.Programs) == 0 && cfg.SharedProgram == "" {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("%s: either programs or shared_program is required", path)}
	}

	return &cfg, nil
}
