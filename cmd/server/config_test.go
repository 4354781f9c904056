package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    config
		wantErr bool
	}{
		{
			name: "Empty file",
			yaml: "",
			want: config{},
		},
		{
			name: "Full config",
			yaml: `
port: "9090"
backend:
  url: https://assistant.example.com/
  timeout: 90s
  token: secret
chat:
  streaming: true
sync:
  sources: [figma]
downloads:
  dir: /tmp/assets
log:
  level: debug
  format: JSON
`,
			want: config{
				Port: "9090",
				Backend: backendConfig{
					URL:     "https://assistant.example.com/",
					Timeout: 90 * time.Second,
					Token:   "secret",
				},
				Chat:      chatConfig{Streaming: true},
				Sync:      syncConfig{Sources: []string{"figma"}},
				Downloads: downloadsConfig{Dir: "/tmp/assets"},
				Log:       logConfig{Level: slog.LevelDebug, Format: "json"},
			},
		},
		{
			name:    "Invalid timeout",
			yaml:    "backend:\n  timeout: soon\n",
			wantErr: true,
		},
		{
			name:    "Invalid log level",
			yaml:    "log:\n  level: loud\n",
			wantErr: true,
		},
		{
			name:    "Invalid yaml",
			yaml:    "port: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadConfig(strings.NewReader(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Port != tt.want.Port || got.Backend != tt.want.Backend || got.Chat != tt.want.Chat ||
				got.Downloads != tt.want.Downloads || got.Log != tt.want.Log ||
				!slices.Equal(got.Sync.Sources, tt.want.Sync.Sources) {
				t.Errorf("loadConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv(tokenEnv, "env-token")
	dir := t.TempDir()

	cfg := config{Backend: backendConfig{URL: "http://backend:8000/"}}
	cfg.applyDefaults(dir)

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Backend.URL != "http://backend:8000" {
		t.Errorf("Backend.URL = %q, want trailing slash trimmed", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 60*time.Second {
		t.Errorf("Backend.Timeout = %v, want 60s", cfg.Backend.Timeout)
	}
	if cfg.Backend.Token != "env-token" {
		t.Errorf("Backend.Token = %q, want the token from %s", cfg.Backend.Token, tokenEnv)
	}
	if !slices.Equal(cfg.Sync.Sources, []string{"figma", "slides"}) {
		t.Errorf("Sync.Sources = %v, want figma and slides", cfg.Sync.Sources)
	}
	if cfg.Downloads.Dir != filepath.Join(dir, "downloads") {
		t.Errorf("Downloads.Dir = %q, want it under %q", cfg.Downloads.Dir, dir)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}

	cfg = config{Backend: backendConfig{Token: "file-token"}}
	cfg.applyDefaults(dir)
	if cfg.Backend.Token != "file-token" {
		t.Errorf("Backend.Token = %q, want the configured token to win", cfg.Backend.Token)
	}
	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("Backend.URL = %q, want the default", cfg.Backend.URL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() config {
		cfg := config{}
		cfg.applyDefaults(t.TempDir())
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*config)
		wantErr bool
	}{
		{
			name:   "Defaults",
			modify: func(*config) {},
		},
		{
			name:    "Unsupported scheme",
			modify:  func(c *config) { c.Backend.URL = "ftp://backend" },
			wantErr: true,
		},
		{
			name:    "Missing scheme",
			modify:  func(c *config) { c.Backend.URL = "backend:8000" },
			wantErr: true,
		},
		{
			name:    "Negative timeout",
			modify:  func(c *config) { c.Backend.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "Source with slash",
			modify:  func(c *config) { c.Sync.Sources = []string{"figma/files"} },
			wantErr: true,
		},
		{
			name:    "Duplicate source",
			modify:  func(c *config) { c.Sync.Sources = []string{"figma", "figma"} },
			wantErr: true,
		},
		{
			name:    "Unknown log format",
			modify:  func(c *config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigLogger(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "json", want: `"msg":"hello"`},
		{format: "text", want: "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config{Log: logConfig{Format: tt.format, Level: slog.LevelInfo}}
			logger := cfg.logger(&buf)

			logger.Debug("hidden")
			logger.Info("hello")

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log output = %q, want to contain %q", buf.String(), tt.want)
			}
			if strings.Contains(buf.String(), "hidden") {
				t.Errorf("log output = %q, debug record was not filtered", buf.String())
			}
		})
	}
}
