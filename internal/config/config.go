// Package config loads the JSON configuration file for the blastdb tools.
//
// Grounded on LoadConfig in
// _examples/BuBitt-DRD4-F2/internal/config/config.go: a tolerant JSON
// loader that falls back to defaults when no config file is present,
// rather than treating a missing file as fatal.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the settings shared by cmd/blastdb and cmd/blastdbweb. Any
// field left unset in the JSON file keeps its zero value; callers apply
// their own defaults (see cmd/blastdbweb/main.go).
type Config struct {
	IndexPath     string `json:"index_path"`
	OutputDir     string `json:"output_dir"`
	OIDRange      string `json:"oid_range"`
	Concurrency   int    `json:"concurrency"`
	JobStore      string `json:"job_store"`       // "json" or "sqlite"
	JobStorePath  string `json:"job_store_path"`
	ListenAddr    string `json:"listen_addr"`     // cmd/blastdbweb
	RateLimitRPS  float64 `json:"rate_limit_rps"` // cmd/blastdbweb
	LogFile       string `json:"log_file"`
	LogLevel      string `json:"log_level"`
}

// LoadConfig loads a JSON config from the given path. If path is empty, it
// looks for ./config.json. A missing file is not an error: the caller
// gets a zero-value Config and applies its own defaults on top of it.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var c Config
	dec := json.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	return &c, nil
}
