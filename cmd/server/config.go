package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/admin"
	"gopkg.in/yaml.v3"
)

const tokenEnv = "DESIGN_ASSISTANT_TOKEN"

type config struct {
	Port      string          `yaml:"port"`
	Backend   backendConfig   `yaml:"backend"`
	Chat      chatConfig      `yaml:"chat"`
	Sync      syncConfig      `yaml:"sync"`
	Downloads downloadsConfig `yaml:"downloads"`
	Log       logConfig       `yaml:"log"`
}

type backendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`
}

type chatConfig struct {
	Streaming bool `yaml:"streaming"`
}

type syncConfig struct {
	Sources []string `yaml:"sources"`
}

type downloadsConfig struct {
	Dir string `yaml:"dir"`
}

type logConfig struct {
	Level  slog.Level `yaml:"level"`
	Format string     `yaml:"format"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port    string `yaml:"port"`
		Backend struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
			Token   string `yaml:"token"`
		} `yaml:"backend"`
		Chat      chatConfig      `yaml:"chat"`
		Sync      syncConfig      `yaml:"sync"`
		Downloads downloadsConfig `yaml:"downloads"`
		Log       struct {
			Level  string `yaml:"level"`
			Format string `yaml:"format"`
		} `yaml:"log"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.Backend.URL = rawConfig.Backend.URL
	c.Backend.Token = rawConfig.Backend.Token
	if rawConfig.Backend.Timeout != "" {
		timeout, err := time.ParseDuration(rawConfig.Backend.Timeout)
		if err != nil {
			return fmt.Errorf("invalid backend timeout: %w", err)
		}
		c.Backend.Timeout = timeout
	}

	c.Chat = rawConfig.Chat
	c.Sync = rawConfig.Sync
	c.Downloads = rawConfig.Downloads

	if rawConfig.Log.Level != "" {
		if err := c.Log.Level.UnmarshalText([]byte(rawConfig.Log.Level)); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	c.Log.Format = strings.ToLower(rawConfig.Log.Format)

	return nil
}

func loadConfig(r io.Reader) (config, error) {
	cfg := config{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in every setting left empty. cfgPath is the directory the config file lives in.
func (c *config) applyDefaults(cfgPath string) {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:8000"
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 60 * time.Second
	}
	if c.Backend.Token == "" {
		c.Backend.Token = os.Getenv(tokenEnv)
	}
	if len(c.Sync.Sources) == 0 {
		c.Sync.Sources = admin.DefaultSources
	}
	if c.Downloads.Dir == "" {
		c.Downloads.Dir = filepath.Join(cfgPath, "downloads")
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c config) validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend url must be http or https, got %q", c.Backend.URL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}

	seen := make(map[string]bool, len(c.Sync.Sources))
	for _, src := range c.Sync.Sources {
		if src == "" || strings.Contains(src, "/") {
			return fmt.Errorf("invalid sync source %q", src)
		}
		if seen[src] {
			return fmt.Errorf("duplicate sync source %q", src)
		}
		seen[src] = true
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}

	return nil
}

func (c config) logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
