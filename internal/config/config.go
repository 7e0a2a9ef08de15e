// Package config loads daemon configuration from HCL files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete daemon configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains transport-level configuration
type ServerSettings struct {
	Address       string `hcl:"address,optional"`
	Port          int    `hcl:"port,optional"`
	LogLevel      string `hcl:"log_level,optional"`
	DatabasePath  string `hcl:"database_path,optional"`
	SweepSeconds  int    `hcl:"sweep_seconds,optional"`
	SweepGraceSec int    `hcl:"sweep_grace_seconds,optional"`
}

// GameSettings tune hand-flow timing across all tables
type GameSettings struct {
	TurnTimeoutSeconds   int `hcl:"turn_timeout_seconds,optional"`
	ShowdownAdmireMillis int `hcl:"showdown_admire_ms,optional"`
	WinByFoldRevealSec   int `hcl:"win_by_fold_reveal_seconds,optional"`
	NextHandDelayMillis  int `hcl:"next_hand_delay_ms,optional"`
	IdleCloseMinutes     int `hcl:"idle_close_minutes,optional"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:       "localhost",
			Port:          8080,
			LogLevel:      "info",
			DatabasePath:  "holdemd.db",
			SweepSeconds:  10,
			SweepGraceSec: 3,
		},
		Game: GameSettings{
			TurnTimeoutSeconds:   30,
			ShowdownAdmireMillis: 5000,
			WinByFoldRevealSec:   5,
			NextHandDelayMillis:  1000,
			IdleCloseMinutes:     30,
		},
	}
}

// Load reads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := Default()
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaults.Server.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = defaults.Server.LogLevel
	}
	if cfg.Server.DatabasePath == "" {
		cfg.Server.DatabasePath = defaults.Server.DatabasePath
	}
	if cfg.Server.SweepSeconds == 0 {
		cfg.Server.SweepSeconds = defaults.Server.SweepSeconds
	}
	if cfg.Server.SweepGraceSec == 0 {
		cfg.Server.SweepGraceSec = defaults.Server.SweepGraceSec
	}
	if cfg.Game.TurnTimeoutSeconds == 0 {
		cfg.Game.TurnTimeoutSeconds = defaults.Game.TurnTimeoutSeconds
	}
	if cfg.Game.ShowdownAdmireMillis == 0 {
		cfg.Game.ShowdownAdmireMillis = defaults.Game.ShowdownAdmireMillis
	}
	if cfg.Game.WinByFoldRevealSec == 0 {
		cfg.Game.WinByFoldRevealSec = defaults.Game.WinByFoldRevealSec
	}
	if cfg.Game.NextHandDelayMillis == 0 {
		cfg.Game.NextHandDelayMillis = defaults.Game.NextHandDelayMillis
	}
	if cfg.Game.IdleCloseMinutes == 0 {
		cfg.Game.IdleCloseMinutes = defaults.Game.IdleCloseMinutes
	}
	return &cfg, nil
}

// Addr formats the listen address
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// TurnTimeout returns the default turn clock as a duration
func (g GameSettings) TurnTimeout() time.Duration {
	return time.Duration(g.TurnTimeoutSeconds) * time.Second
}

// ShowdownAdmire returns the showdown pause as a duration
func (g GameSettings) ShowdownAdmire() time.Duration {
	return time.Duration(g.ShowdownAdmireMillis) * time.Millisecond
}

// WinByFoldReveal returns the reveal window as a duration
func (g GameSettings) WinByFoldReveal() time.Duration {
	return time.Duration(g.WinByFoldRevealSec) * time.Second
}

// NextHandDelay returns the auto-start pause as a duration
func (g GameSettings) NextHandDelay() time.Duration {
	return time.Duration(g.NextHandDelayMillis) * time.Millisecond
}

// IdleClose returns the idle-close window as a duration
func (g GameSettings) IdleClose() time.Duration {
	return time.Duration(g.IdleCloseMinutes) * time.Minute
}
