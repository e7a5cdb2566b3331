package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"simple name", "report.pdf", false},
		{"dots inside name", "data..v2.csv", false},
		{"empty", "", true},
		{"forward slash", "a/b.txt", true},
		{"backslash", "a\\b.txt", true},
		{"literal dot", ".", true},
		{"literal dotdot", "..", true},
		{"null byte", "a\x00b", true},
		{"unicode name", "résumé.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative inside", "calm-ocean-lamp/report.pdf", false},
		{"absolute inside", filepath.Join(base, "id", "f.txt"), false},
		{"base itself", ".", false},
		{"escapes upward", "../outside.txt", true},
		{"deep escape", "a/../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tt.path, base)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathInDirectory(%q, base) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}

	t.Run("empty base", func(t *testing.T) {
		if err := ValidatePathInDirectory("x", ""); err == nil {
			t.Error("Expected error for empty base directory")
		}
	})
}
