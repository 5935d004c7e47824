// Package config holds the client's YAML-tagged configuration, following
// the connector config layout used elsewhere in the stack.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the client's full configuration: the recognized keys from
// spec.md §6 plus the ambient logging/connection knobs spec.md §5 fixes as
// constants upstream (here made overridable, with the spec's values as
// defaults).
type Config struct {
	// Messaging tunes archive pagination (spec.md §6 "Configuration options").
	Messaging MessagingConfig `yaml:"messaging"`

	// MUCService is the target service JID for MUC-hosted rooms.
	MUCService string `yaml:"muc_service"`

	// SoftwareVersion is used as the local device label (spec.md §6).
	SoftwareVersion *SoftwareVersion `yaml:"software_version"`

	Log LogConfig `yaml:"log"`

	Timers TimersConfig `yaml:"timers"`
}

// MessagingConfig configures archive fetch batching (spec.md §6).
type MessagingConfig struct {
	MessagePageSize        uint32 `yaml:"message_page_size"`
	MaxMessagePagesToLoad  uint32 `yaml:"max_message_pages_to_load"`
}

// SoftwareVersion identifies the running client for device bundles.
type SoftwareVersion struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	OS      string `yaml:"os"`
}

// LogConfig configures the zerolog sink.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TimersConfig holds the connection timers and policy durations fixed by
// spec.md §6 ("Wire-format constants"). The values are loaded and defaulted
// but no component in this module reads them; in particular the catch-up
// engine uses its own historycatchup.Floor constant, not CatchUpFloor.
type TimersConfig struct {
	Ping          time.Duration `yaml:"ping"`
	Watchdog      time.Duration `yaml:"watchdog"`
	ComposingTTL  time.Duration `yaml:"composing_ttl"`
	CatchUpFloor  time.Duration `yaml:"catch_up_floor"`
}

// Load reads a YAML config file at path, layering its values over Default.
// A missing file is not an error; it just returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the spec's fixed defaults (spec.md §6).
func Default() Config {
	return Config{
		Messaging: MessagingConfig{
			MessagePageSize:       100,
			MaxMessagePagesToLoad: 10,
		},
		Log: LogConfig{Level: "info"},
		Timers: TimersConfig{
			Ping:         60 * time.Second,
			Watchdog:     5 * time.Second,
			ComposingTTL: 30 * time.Second,
			CatchUpFloor: 5 * 24 * time.Hour,
		},
	}
}
