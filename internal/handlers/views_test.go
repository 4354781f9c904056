package handlers

import "testing"

func TestKindTitle(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{kind: "files", want: "Files"},
		{kind: "presentations", want: "Presentations"},
		{kind: "éléments", want: "Éléments"},
		{kind: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := kindTitle(tt.kind); got != tt.want {
				t.Errorf("kindTitle(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}
