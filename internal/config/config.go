// Package config loads the front end configuration from an optional
// TOML file. Command line flags are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	RefreshTicker = "ticker"
	RefreshClient = "client"
)

// Config is the front end configuration.
type Config struct {
	// Driver names the display driver, or "auto".
	Driver string
	// Refresh selects what paces the frame loop: a wall-clock
	// ticker, or the refresh ticks of a connected client.
	Refresh string
	// Rate is the ticker rate in Hz; zero selects the Game Boy
	// frame rate.
	Rate float64
	// LogLevel is one of trace, debug, info, warn or error.
	LogLevel string
	// MaxROMSize limits selected files in bytes.
	MaxROMSize int64
	// Frames ends each loop after that many frames; zero runs
	// forever.
	Frames uint64
	// ROM is loaded once the engine is ready.
	ROM string
	// Addr is the listen address of the web driver; empty keeps
	// the driver default.
	Addr string
	// ROMCache is the number of recent images the web driver
	// keeps for reloads; zero keeps the driver default.
	ROMCache int
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Driver:     "auto",
		Refresh:    RefreshTicker,
		LogLevel:   "info",
		MaxROMSize: 8 << 20,
	}
}

type fileConfig struct {
	Driver     string  `toml:"driver"`
	Refresh    string  `toml:"refresh"`
	Rate       float64 `toml:"rate"`
	LogLevel   string  `toml:"log_level"`
	MaxROMSize int64   `toml:"max_rom_size"`
	Frames     int64   `toml:"frames"`
	ROM        string  `toml:"rom"`
	Addr       string  `toml:"addr"`
	ROMCache   int     `toml:"rom_cache"`
}

// Load reads path over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("driver") {
		cfg.Driver = strings.TrimSpace(raw.Driver)
	}
	if meta.IsDefined("refresh") {
		cfg.Refresh = strings.ToLower(strings.TrimSpace(raw.Refresh))
	}
	if meta.IsDefined("rate") {
		cfg.Rate = raw.Rate
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("max_rom_size") {
		cfg.MaxROMSize = raw.MaxROMSize
	}
	if meta.IsDefined("frames") {
		if raw.Frames < 0 {
			return Config{}, errors.New("load config: frames must not be negative")
		}
		cfg.Frames = uint64(raw.Frames)
	}
	if meta.IsDefined("rom") {
		cfg.ROM = strings.TrimSpace(raw.ROM)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("rom_cache") {
		cfg.ROMCache = raw.ROMCache
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Refresh {
	case RefreshTicker, RefreshClient:
	default:
		return fmt.Errorf("config: refresh must be %q or %q, got %q", RefreshTicker, RefreshClient, c.Refresh)
	}
	if c.Rate < 0 {
		return fmt.Errorf("config: rate must not be negative, got %v", c.Rate)
	}
	if c.MaxROMSize <= 0 {
		return fmt.Errorf("config: max_rom_size must be positive, got %d", c.MaxROMSize)
	}
	if c.ROMCache < 0 {
		return fmt.Errorf("config: rom_cache must not be negative, got %d", c.ROMCache)
	}
	if c.Driver == "" {
		return errors.New("config: driver must not be empty")
	}
	return nil
}
