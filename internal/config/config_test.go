package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// chdir switches the working directory for the duration of the test and
// restores the original one afterwards (testing.T.Chdir equivalent for
// toolchains before Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

// touchWordlist creates a stand-in wordlist file so Validate's existence
// check passes.
func touchWordlist(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordlist.txt")
	if err := os.WriteFile(path, []byte("11111 abacus\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := New()
	cfg.Storage.WordlistPath = touchWordlist(t)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := New()

	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", cfg.Server.ListenAddr)
	}
	if cfg.Index.URL != "redis://localhost:6379/0" {
		t.Errorf("Index.URL = %q", cfg.Index.URL)
	}
	if cfg.Limits.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, want 1048576", cfg.Limits.MaxFileSize)
	}
	if cfg.Storage.OrphanAgeMinutes != 120 {
		t.Errorf("OrphanAgeMinutes = %d, want 120", cfg.Storage.OrphanAgeMinutes)
	}
	if cfg.Limits.UploadRateLimit != 5 || cfg.Limits.FailureThreshold != 5 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "absent.ini")); err == nil {
		t.Fatal("Load() with missing explicit file succeeded, want error")
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want default", cfg.Server.ListenAddr)
	}
}

func TestLoadINIFile(t *testing.T) {
	chdir(t, t.TempDir())

	path := filepath.Join(t.TempDir(), "ember.ini")
	content := `[server]
listen_addr = :9000
base_url = http://share.example.com/

[index]
url = redis://cache:6379/1

[storage]
path = /var/ember
secure_delete_passes = 3

[limits]
max_file_size = 2097152
allowed_mime_types = image/*, application/pdf
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.BaseURL != "http://share.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if cfg.Index.URL != "redis://cache:6379/1" {
		t.Errorf("Index.URL = %q", cfg.Index.URL)
	}
	if cfg.Storage.SecureDeletePasses != 3 {
		t.Errorf("SecureDeletePasses = %d", cfg.Storage.SecureDeletePasses)
	}
	if cfg.Limits.MaxFileSize != 2097152 {
		t.Errorf("MaxFileSize = %d", cfg.Limits.MaxFileSize)
	}
	// Unset keys keep their defaults.
	if cfg.Storage.CleanupIntervalMinutes != 5 {
		t.Errorf("CleanupIntervalMinutes = %d, want default 5", cfg.Storage.CleanupIntervalMinutes)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !filepath.IsAbs(cfg.Storage.Path) {
		t.Errorf("Storage.Path = %q, want absolute", cfg.Storage.Path)
	}
	if !filepath.IsAbs(cfg.Storage.WordlistPath) {
		t.Errorf("WordlistPath = %q, want absolute", cfg.Storage.WordlistPath)
	}
	if filepath.Base(cfg.Storage.Path) != "storage" {
		t.Errorf("Storage.Path = %q, want the default leaf kept", cfg.Storage.Path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	chdir(t, t.TempDir())

	path := filepath.Join(t.TempDir(), "ember.ini")
	if err := os.WriteFile(path, []byte("[server]\nlisten_addr = :9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EMBER_LISTEN_ADDR", ":7777")
	t.Setenv("EMBER_FAILURE_THRESHOLD", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("ListenAddr = %q, want env value", cfg.Server.ListenAddr)
	}
	if cfg.Limits.FailureThreshold != 9 {
		t.Errorf("FailureThreshold = %d, want 9", cfg.Limits.FailureThreshold)
	}
}

func TestDotEnvExportsIntoEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("EMBER_LISTEN_ADDR=:6500\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("EMBER_LISTEN_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":6500" {
		t.Errorf("ListenAddr = %q, want .env value", cfg.Server.ListenAddr)
	}
}

func TestEnvironmentBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("EMBER_BASE_URL=http://dotenv.example\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EMBER_BASE_URL", "http://real.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.BaseURL != "http://real.example" {
		t.Errorf("BaseURL = %q, want process environment to win", cfg.Server.BaseURL)
	}
}

func TestMalformedEnvInteger(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EMBER_MAX_FILE_SIZE", "one-megabyte")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() with malformed integer succeeded, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"bad index url", func(c *Config) { c.Index.URL = "memcached://x" }, ErrInvalidIndexURL},
		{"missing wordlist", func(c *Config) { c.Storage.WordlistPath = "/nonexistent/words.txt" }, ErrMissingWordlist},
		{"empty storage path", func(c *Config) { c.Storage.Path = "  " }, ErrMissingStoragePath},
		{"zero max size", func(c *Config) { c.Limits.MaxFileSize = 0 }, ErrInvalidMaxFileSize},
		{"zero shred passes", func(c *Config) { c.Storage.SecureDeletePasses = 0 }, ErrInvalidShredPasses},
		{"cleanup too long", func(c *Config) { c.Storage.CleanupIntervalMinutes = 61 }, ErrInvalidCleanupInterval},
		{"orphan age too short", func(c *Config) { c.Storage.OrphanAgeMinutes = 60 }, ErrInvalidOrphanAge},
		{"zero upload limit", func(c *Config) { c.Limits.UploadRateLimit = 0 }, ErrInvalidUploadRateLimit},
		{"zero threshold", func(c *Config) { c.Limits.FailureThreshold = 0 }, ErrInvalidFailureThreshold},
		{"zero block window", func(c *Config) { c.Limits.BlockWindowMinutes = 0 }, ErrInvalidBlockWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAllowedMimeList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty means permit all", "", nil},
		{"single", "image/png", []string{"image/png"}},
		{"trimmed and filtered", " image/* , ,application/pdf ", []string{"image/*", "application/pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Limits.AllowedMimeTypes = tt.raw

			got := cfg.AllowedMimeList()
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedMimeList() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := New()
	cfg.Storage.CleanupIntervalMinutes = 2
	cfg.Storage.OrphanAgeMinutes = 90
	cfg.Limits.BlockWindowMinutes = 15

	if got := cfg.CleanupInterval().Minutes(); got != 2 {
		t.Errorf("CleanupInterval = %v min", got)
	}
	if got := cfg.OrphanAge().Minutes(); got != 90 {
		t.Errorf("OrphanAge = %v min", got)
	}
	if got := cfg.BlockWindow().Minutes(); got != 15 {
		t.Errorf("BlockWindow = %v min", got)
	}
}
