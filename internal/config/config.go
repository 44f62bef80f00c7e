package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `toml:"server" yaml:"server"`
	Stream StreamConfig `toml:"stream" yaml:"stream"`
	Events EventsConfig `toml:"events" yaml:"events"`
	Upload UploadConfig `toml:"upload" yaml:"upload"`
	Hub    HubConfig    `toml:"hub" yaml:"hub"`
}

type ServerConfig struct {
	Listen    string `toml:"listen" yaml:"listen"`
	PublicDir string `toml:"public_dir" yaml:"public_dir"` // empty disables static files
	Index     string `toml:"index" yaml:"index"`

	// HeartbeatS is the activity log interval in seconds; 0 disables it.
	HeartbeatS int `toml:"heartbeat_s" yaml:"heartbeat_s"`
}

type StreamConfig struct {
	IntervalMS  int    `toml:"interval_ms" yaml:"interval_ms"`
	Boundary    string `toml:"boundary" yaml:"boundary"`
	ContentType string `toml:"content_type" yaml:"content_type"`
}

type EventsConfig struct {
	MaxEvents     int `toml:"max_events" yaml:"max_events"`
	SnapshotLimit int `toml:"snapshot_limit" yaml:"snapshot_limit"`
}

type UploadConfig struct {
	Field    string `toml:"field" yaml:"field"`
	MaxBytes int64  `toml:"max_bytes" yaml:"max_bytes"`
}

type HubConfig struct {
	SendBuffer int `toml:"send_buffer" yaml:"send_buffer"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:     "0.0.0.0:3000",
			PublicDir:  "public",
			Index:      "dashboard.html",
			HeartbeatS: 30,
		},
		Stream: StreamConfig{
			IntervalMS:  100,
			Boundary:    "frame",
			ContentType: "image/jpeg",
		},
		Events: EventsConfig{
			MaxEvents:     500,
			SnapshotLimit: 50,
		},
		Upload: UploadConfig{
			Field:    "frame",
			MaxBytes: 10 << 20,
		},
		Hub: HubConfig{
			SendBuffer: 64,
		},
	}
}

// Load overlays the file at path (TOML, or YAML for .yml/.yaml) on the
// defaults. A missing file is not an error. PORT in the environment replaces
// the listen port.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := decodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.Listen)
		if err != nil {
			host = ""
		}
		cfg.Server.Listen = net.JoinHostPort(host, port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Listen == "":
		return fmt.Errorf("config: server.listen is required")
	case c.Stream.IntervalMS <= 0:
		return fmt.Errorf("config: stream.interval_ms must be positive, got %d", c.Stream.IntervalMS)
	case c.Events.MaxEvents <= 0:
		return fmt.Errorf("config: events.max_events must be positive, got %d", c.Events.MaxEvents)
	case c.Events.SnapshotLimit <= 0:
		return fmt.Errorf("config: events.snapshot_limit must be positive, got %d", c.Events.SnapshotLimit)
	case c.Hub.SendBuffer <= 0:
		return fmt.Errorf("config: hub.send_buffer must be positive, got %d", c.Hub.SendBuffer)
	case c.Server.HeartbeatS < 0:
		return fmt.Errorf("config: server.heartbeat_s must not be negative, got %d", c.Server.HeartbeatS)
	case c.Upload.MaxBytes <= 0:
		return fmt.Errorf("config: upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	return nil
}

func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.Stream.IntervalMS) * time.Millisecond
}
