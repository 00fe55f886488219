// Copyright 2026 The jaffarPlus Authors
// This file is part of jaffarPlus.
//
// jaffarPlus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// jaffarPlus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with jaffarPlus. If not, see <http://www.gnu.org/licenses/>.

// Package config decodes and validates the TOML configuration document
// (§6.3) into typed structs consumed by cmd/jaffar at startup.
package config

import (
	"fmt"
	"runtime"

	"github.com/c2h5oh/datasize"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/rules"
)

// InputDoc is one entry of the "Game Inputs" array (§6.3). Validate
// requires at least one entry and InputNames lists them in declaration
// order; the input_id space the search uses is the Game's own
// sim.Game.Inputs table, which this list does not change.
type InputDoc struct {
	Input string `toml:"Input"`
}

// CheckpointConfig controls periodic checkpoint writes (§4.6).
type CheckpointConfig struct {
	Path     string  `toml:"Path"`
	Interval float64 `toml:"Interval Seconds"`
}

// LoggingConfig selects zap's logging level/encoder.
type LoggingConfig struct {
	Level  string `toml:"Level"`  // zapcore.Level name: "debug","info","warn","error"
	Format string `toml:"Format"` // "json" | "console"
}

// Config is the full decoded document (§6.3, plus the ambient/domain
// keys SPEC_FULL.md §6.3 adds).
type Config struct {
	StateDatabase struct {
		MaxSize datasize.ByteSize `toml:"Max Size"` // e.g. "512MB", "2GB"
		Type    string            `toml:"Type"`
	} `toml:"State Database"`

	HashDatabase struct {
		MaxEntries int    `toml:"Max Entries"`
		OnFull     string `toml:"On Full"`
	} `toml:"Hash Database"`

	Runner struct {
		StoreInputHistory bool `toml:"Store Input History"`
		HashStepTolerance int  `toml:"Hash Step Tolerance"`
	} `toml:"Runner"`

	Rules      []rules.RuleDoc `toml:"Rules"`
	GameInputs []InputDoc      `toml:"Game Inputs"`

	StopOnWin   bool     `toml:"Stop On Win"`
	MaxSteps    *uint64  `toml:"Max Steps"`
	MaxWallTime *float64 `toml:"Max Wall Time"`

	Simulator       string         `toml:"Simulator"`
	SimulatorConfig map[string]any `toml:"Simulator Configuration"`
	Game            string         `toml:"Game"`
	GameConfig      map[string]any `toml:"Game Configuration"`

	Checkpoint CheckpointConfig `toml:"Checkpoint"`
	Logging    LoggingConfig    `toml:"Logging"`
	Workers    int              `toml:"Workers"`
}

// Load decodes a TOML document from buf.
func Load(buf []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w: %v", errs.ErrConfig, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.HashDatabase.OnFull == "" {
		cfg.HashDatabase.OnFull = "ignore"
	}
	if cfg.Checkpoint.Interval <= 0 {
		cfg.Checkpoint.Interval = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate rejects configurations the engine cannot run with, naming
// the offending key per §7's "message names the offending key" rule.
func (cfg *Config) Validate() error {
	if cfg.StateDatabase.MaxSize <= 0 {
		return fmt.Errorf("config: %w: State Database.Max Size must be positive", errs.ErrConfig)
	}
	if cfg.HashDatabase.MaxEntries < 0 {
		return fmt.Errorf("config: %w: Hash Database.Max Entries must not be negative", errs.ErrConfig)
	}
	switch cfg.HashDatabase.OnFull {
	case "ignore", "evict":
	default:
		return fmt.Errorf("config: %w: Hash Database.On Full must be \"ignore\" or \"evict\", got %q", errs.ErrConfig, cfg.HashDatabase.OnFull)
	}
	if len(cfg.GameInputs) == 0 {
		return fmt.Errorf("config: %w: Game Inputs must declare at least one input", errs.ErrConfig)
	}
	if cfg.Simulator == "" {
		return fmt.Errorf("config: %w: Simulator must name a registered simulator", errs.ErrConfig)
	}
	if cfg.Game == "" {
		return fmt.Errorf("config: %w: Game must name a registered game", errs.ErrConfig)
	}
	seen := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.Label == "" {
			return fmt.Errorf("config: %w: every rule must declare a Label", errs.ErrConfig)
		}
		if seen[r.Label] {
			return fmt.Errorf("config: %w: duplicate rule label %q", errs.ErrConfig, r.Label)
		}
		seen[r.Label] = true
	}
	return nil
}

// InputNames returns the declared input alphabet in declaration order.
func (cfg *Config) InputNames() []string {
	names := make([]string, len(cfg.GameInputs))
	for i, d := range cfg.GameInputs {
		names[i] = d.Input
	}
	return names
}
