package services_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MegaGrindStone/design-assistant/internal/services"
)

func TestFileSaverSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	saver, err := services.NewFileSaver(dir)
	if err != nil {
		t.Fatalf("NewFileSaver() error = %v", err)
	}

	tests := []struct {
		name     string
		file     string
		data     string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "Plain name",
			file:     "logo-mark.svg",
			data:     "<svg/>",
			wantPath: filepath.Join(dir, "logo-mark.svg"),
		},
		{
			name:     "Overwrite",
			file:     "logo-mark.svg",
			data:     "<svg id=\"2\"/>",
			wantPath: filepath.Join(dir, "logo-mark.svg"),
		},
		{
			name:     "Path is stripped",
			file:     "../../etc/asset.svg",
			data:     "<svg/>",
			wantPath: filepath.Join(dir, "asset.svg"),
		},
		{
			name:    "Empty name",
			file:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := saver.Save(tt.file, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if path != tt.wantPath {
				t.Errorf("Save() path = %q, want %q", path, tt.wantPath)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.data {
				t.Errorf("saved data = %q, want %q", got, tt.data)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestMarkdownRender(t *testing.T) {
	md := services.NewMarkdown("")

	tests := []struct {
		name    string
		source  string
		want    []string
		notWant []string
	}{
		{
			name:   "Emphasis and lists",
			source: "**Primary** colors:\n\n- #5B4BDB\n- #FFFFFF",
			want:   []string{"<strong>Primary</strong>", "<li>#5B4BDB</li>"},
		},
		{
			name:   "Table",
			source: "| Token | Value |\n|---|---|\n| primary | #5B4BDB |",
			want:   []string{"<table>", "<td>primary</td>"},
		},
		{
			name:    "Raw HTML is not passed through",
			source:  "<script>alert(1)</script>",
			notWant: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := md.Render(tt.source)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(got), w) {
					t.Errorf("Render() = %s, want to contain %s", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(string(got), w) {
					t.Errorf("Render() = %s, want not to contain %s", got, w)
				}
			}
		})
	}
}
