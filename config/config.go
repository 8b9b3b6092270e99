package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-sixteenstep/debug"
	"go-sixteenstep/sequencer"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is how often the rack polls its engines
const DefaultPollInterval = time.Millisecond

// TrackConfig defines one sequencer track of the rack
type TrackConfig struct {
	Name     string `json:"name" yaml:"name"`
	PortName string `json:"portName,omitempty" yaml:"portName,omitempty"` // empty = Config.OutputPort
	Channel  int    `json:"channel,omitempty" yaml:"channel,omitempty"`   // 1-16 pins the output channel, 0 keeps the note's
	Steps    int    `json:"steps,omitempty" yaml:"steps,omitempty"`       // 0 = Config.Steps
	Muted    bool   `json:"muted,omitempty" yaml:"muted,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Tempo   int `json:"tempo" yaml:"tempo"`
	Steps   int `json:"steps" yaml:"steps"`
	Shuffle int `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	Memory  int `json:"memory,omitempty" yaml:"memory,omitempty"` // note store bytes per track

	OutputPort   string `json:"outputPort,omitempty" yaml:"outputPort,omitempty"`
	InputPort    string `json:"inputPort,omitempty" yaml:"inputPort,omitempty"`
	InputChannel int    `json:"inputChannel,omitempty" yaml:"inputChannel,omitempty"` // 1-16, 0 = omni

	PollMillis int    `json:"pollMillis,omitempty" yaml:"pollMillis,omitempty"`
	DebugLog   string `json:"debugLog,omitempty" yaml:"debugLog,omitempty"`

	Tracks []TrackConfig `json:"tracks,omitempty" yaml:"tracks,omitempty"`
}

// DefaultConfig returns a single-track config at the engine defaults
func DefaultConfig() *Config {
	return &Config{
		Tempo:  sequencer.DefaultTempo,
		Steps:  sequencer.DefaultSteps,
		Memory: sequencer.DefaultMemory,
		Tracks: []TrackConfig{
			{Name: "seq"},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sixteenstep"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a JSON or YAML config (by extension). A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			debug.Log("config", "%s not found, using defaults", path)
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	cfg.Tracks = nil
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.normalize()
	debug.Log("config", "loaded %s: %d tracks", path, len(cfg.Tracks))
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config as JSON or YAML (by extension)
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// normalize fills zero values and clamps channels
func (c *Config) normalize() {
	if c.Tempo == 0 {
		c.Tempo = sequencer.DefaultTempo
	}
	if c.Steps == 0 {
		c.Steps = sequencer.DefaultSteps
	}
	if c.Memory == 0 {
		c.Memory = sequencer.DefaultMemory
	}
	if c.InputChannel < 0 || c.InputChannel > 16 {
		c.InputChannel = 0
	}
	if len(c.Tracks) == 0 {
		c.Tracks = DefaultConfig().Tracks
	}
	for i := range c.Tracks {
		t := &c.Tracks[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("track%d", i+1)
		}
		if t.Channel < 0 || t.Channel > 16 {
			t.Channel = 0
		}
	}
}

// Engine returns the transport settings for track i
func (c *Config) Engine(i int) sequencer.Config {
	ec := sequencer.Config{Tempo: c.Tempo, Steps: c.Steps, Shuffle: c.Shuffle}
	if i >= 0 && i < len(c.Tracks) && c.Tracks[i].Steps > 0 {
		ec.Steps = c.Tracks[i].Steps
	}
	return ec
}

// PollInterval returns the rack poll period
func (c *Config) PollInterval() time.Duration {
	if c.PollMillis <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollMillis) * time.Millisecond
}

// TrackIndex returns the index of the named track, or -1
func (c *Config) TrackIndex(name string) int {
	for i := range c.Tracks {
		if c.Tracks[i].Name == name {
			return i
		}
	}
	return -1
}

// AddTrack adds or updates a track config
func (c *Config) AddTrack(t TrackConfig) {
	for i := range c.Tracks {
		if c.Tracks[i].Name == t.Name {
			c.Tracks[i] = t
			return
		}
	}
	c.Tracks = append(c.Tracks, t)
}

// TrackPorts returns the distinct output ports the tracks use
func (c *Config) TrackPorts() []string {
	seen := make(map[string]bool)
	var result []string
	for _, t := range c.Tracks {
		port := t.PortName
		if port == "" {
			port = c.OutputPort
		}
		if port != "" && !seen[port] {
			seen[port] = true
			result = append(result, port)
		}
	}
	return result
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
