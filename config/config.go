// Package config loads the structured configuration document consumed by
// the orchestration core (spec.md §6): audio/stt/commands/security sections
// plus the permission-config document. Three-layer priority, lowest first:
// built-in defaults, the YAML file, then JARVIS_<SECTION>_<KEY> environment
// overrides — mirrors the teacher's DefaultConfig/LoadFromEnv layering in
// core/config.go, generalized from GOMIND_ to JARVIS_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AudioConfig describes the external microphone-capture collaborator's
// format contract. The core never touches audio frames itself (spec.md §1
// Out of scope) but other components (stt) need to agree on the shape.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate" json:"sample_rate"`
	Channels   int    `yaml:"channels" json:"channels"`
	DType      string `yaml:"dtype" json:"dtype"`
}

// STTConfig describes the external speech-to-text collaborator's settings.
type STTConfig struct {
	Model              string  `yaml:"model" json:"model"`
	Language           string  `yaml:"language" json:"language"`
	BeamSize           int     `yaml:"beam_size" json:"beam_size"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	Device             string  `yaml:"device" json:"device"`
}

// CommandsConfig points at an on-disk tool catalog. It is loaded and
// env-overridable, but nothing reads RegistryPath; the Tool Registry is
// seeded in code at startup.
type CommandsConfig struct {
	RegistryPath string `yaml:"registry_path" json:"registry_path"`
}

// SecurityConfig holds the sandbox settings (spec.md §6). Only AllowedApps
// is passed to the Executor's sandbox; DefaultPolicy and BlockedPaths are
// loaded but not used by any component.
type SecurityConfig struct {
	DefaultPolicy string   `yaml:"default_policy" json:"default_policy"` // "deny" | "allow"
	BlockedPaths  []string `yaml:"blocked_paths" json:"blocked_paths"`
	AllowedApps   []string `yaml:"allowed_apps" json:"allowed_apps"`
}

// SchedulerConfig tunes the scheduler's dispatch loop cadence.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
}

// StorageConfig points at the embedded database file.
type StorageConfig struct {
	Path            string        `yaml:"path" json:"path"`
	MaxTurnsPerConv int           `yaml:"max_turns_per_conversation" json:"max_turns_per_conversation"`
	MaxConversations int          `yaml:"max_conversations" json:"max_conversations"`
	PruneTimeout    time.Duration `yaml:"prune_timeout" json:"prune_timeout"`
}

// Config is the root structured configuration document.
type Config struct {
	Audio     AudioConfig     `yaml:"audio" json:"audio"`
	STT       STTConfig       `yaml:"stt" json:"stt"`
	Commands  CommandsConfig  `yaml:"commands" json:"commands"`
	Security  SecurityConfig  `yaml:"security" json:"security"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
}

// Default returns a configuration with sensible, locally-runnable defaults.
// These can be overridden by a YAML file and then by environment variables,
// in that order (Load applies both layers on top of this).
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			DType:      "int16",
		},
		STT: STTConfig{
			Model:               "base.en",
			Language:            "en",
			BeamSize:            5,
			ConfidenceThreshold: 0.6,
			Device:              "cpu",
		},
		Commands: CommandsConfig{
			RegistryPath: "commands.yaml",
		},
		Security: SecurityConfig{
			DefaultPolicy: "deny",
			BlockedPaths: []string{
				"/etc", "/var", "/usr", "/bin", "/sbin",
				"/System", "/Library", "/private",
			},
			AllowedApps: []string{},
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Second,
		},
		Storage: StorageConfig{
			Path:             "jarvis.db",
			MaxTurnsPerConv:  500,
			MaxConversations: 200,
			PruneTimeout:     10 * time.Second,
		},
	}
}

// Load reads a YAML document at path (if it exists) over the defaults, then
// applies JARVIS_<SECTION>_<KEY> environment overrides. A missing file is
// not an error — the defaults (plus env) still apply, matching the
// teacher's tolerance for a config-free local run.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from JARVIS_<SECTION>_<KEY> environment
// variables, explicit field-by-field like the teacher's LoadFromEnv rather
// than a reflective walk — config shape is small and fixed, so precedence
// stays legible at a glance.
func (c *Config) applyEnv() error {
	if v := os.Getenv("JARVIS_AUDIO_SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JARVIS_AUDIO_SAMPLE_RATE: %w", err)
		}
		c.Audio.SampleRate = n
	}
	if v := os.Getenv("JARVIS_AUDIO_CHANNELS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JARVIS_AUDIO_CHANNELS: %w", err)
		}
		c.Audio.Channels = n
	}
	if v := os.Getenv("JARVIS_AUDIO_DTYPE"); v != "" {
		c.Audio.DType = v
	}

	if v := os.Getenv("JARVIS_STT_MODEL"); v != "" {
		c.STT.Model = v
	}
	if v := os.Getenv("JARVIS_STT_LANGUAGE"); v != "" {
		c.STT.Language = v
	}
	if v := os.Getenv("JARVIS_STT_BEAM_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JARVIS_STT_BEAM_SIZE: %w", err)
		}
		c.STT.BeamSize = n
	}
	if v := os.Getenv("JARVIS_STT_CONFIDENCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("JARVIS_STT_CONFIDENCE_THRESHOLD: %w", err)
		}
		c.STT.ConfidenceThreshold = f
	}
	if v := os.Getenv("JARVIS_STT_DEVICE"); v != "" {
		c.STT.Device = v
	}

	if v := os.Getenv("JARVIS_COMMANDS_REGISTRY_PATH"); v != "" {
		c.Commands.RegistryPath = v
	}

	if v := os.Getenv("JARVIS_SECURITY_DEFAULT_POLICY"); v != "" {
		c.Security.DefaultPolicy = v
	}
	if v := os.Getenv("JARVIS_SECURITY_BLOCKED_PATHS"); v != "" {
		c.Security.BlockedPaths = strings.Split(v, ",")
	}
	if v := os.Getenv("JARVIS_SECURITY_ALLOWED_APPS"); v != "" {
		c.Security.AllowedApps = strings.Split(v, ",")
	}

	if v := os.Getenv("JARVIS_SCHEDULER_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JARVIS_SCHEDULER_TICK_INTERVAL: %w", err)
		}
		c.Scheduler.TickInterval = d
	}

	if v := os.Getenv("JARVIS_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("JARVIS_STORAGE_MAX_TURNS_PER_CONVERSATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JARVIS_STORAGE_MAX_TURNS_PER_CONVERSATION: %w", err)
		}
		c.Storage.MaxTurnsPerConv = n
	}
	if v := os.Getenv("JARVIS_STORAGE_MAX_CONVERSATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JARVIS_STORAGE_MAX_CONVERSATIONS: %w", err)
		}
		c.Storage.MaxConversations = n
	}

	return nil
}
