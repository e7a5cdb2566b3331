// Package config loads service configuration from built-in defaults, an
// optional INI file, an optional .env file, and EMBER_* environment
// variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/pathutil"
)

// DefaultConfigFile is consulted when no --config flag is given. A
// missing default file is not an error; an explicitly named one is.
const DefaultConfigFile = "ember.ini"

// DotEnvFile holds KEY=VALUE pairs exported into the environment before
// the environment pass, so a .env entry behaves exactly like a real
// environment variable but never overrides one.
const DotEnvFile = ".env"

// Config is the full service configuration.
//
// INI format:
//
//	[server]
//	listen_addr = :8000
//	base_url = http://localhost:8000
//	log_level = info
//
//	[index]
//	url = redis://localhost:6379/0
//
//	[storage]
//	path = ./storage
//	wordlist_path = ./eff_large_wordlist.txt
//	secure_delete_passes = 1
//	cleanup_interval_minutes = 5
//	orphan_age_minutes = 120
//
//	[limits]
//	max_file_size = 1048576
//	allowed_mime_types = image/*,application/pdf
//	upload_rate_limit = 5
//	failure_threshold = 5
//	block_window_minutes = 15
type Config struct {
	Server  ServerConfig
	Index   IndexConfig
	Storage StorageConfig
	Limits  LimitsConfig
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds.
	// Default: ":8000"
	ListenAddr string `ini:"listen_addr"`

	// BaseURL is the externally visible URL prefix used when composing
	// preview and download links. Stored without a trailing slash.
	// Default: "http://localhost:8000"
	BaseURL string `ini:"base_url"`

	// LogLevel is the minimum level emitted: trace, debug, info, warn
	// or error. Default: "info"
	LogLevel string `ini:"log_level"`
}

// IndexConfig contains the key-value store connection settings.
type IndexConfig struct {
	// URL is the index connection string. Must start with "redis://".
	// Default: "redis://localhost:6379/0"
	URL string `ini:"url"`
}

// StorageConfig contains the blob storage and reaper settings.
type StorageConfig struct {
	// Path is the blob storage root. Created at startup if absent.
	// Default: "./storage"
	Path string `ini:"path"`

	// WordlistPath points at the diceware wordlist file. Must exist.
	// Default: "./eff_large_wordlist.txt"
	WordlistPath string `ini:"wordlist_path"`

	// SecureDeletePasses is the number of random-overwrite passes
	// performed before a blob is unlinked. Minimum: 1, Default: 1
	SecureDeletePasses int `ini:"secure_delete_passes"`

	// CleanupIntervalMinutes is the orphan reaper cadence.
	// Minimum: 1, Maximum: 60, Default: 5
	CleanupIntervalMinutes int `ini:"cleanup_interval_minutes"`

	// OrphanAgeMinutes is the minimum age of an unindexed directory
	// before the reaper may shred it. Must exceed the maximum upload
	// expiry of 60 minutes. Default: 120
	OrphanAgeMinutes int `ini:"orphan_age_minutes"`
}

// LimitsConfig contains upload caps and abuse-throttle settings.
type LimitsConfig struct {
	// MaxFileSize is the largest accepted blob in bytes. Uploads are
	// held fully in memory, so this also bounds per-request memory.
	// Default: 1048576 (1 MiB)
	MaxFileSize int64 `ini:"max_file_size"`

	// AllowedMimeTypes is a comma-separated allow-list. Empty permits
	// every type. Entries ending in "*" match a category ("image/*").
	// Default: "" (permit all)
	AllowedMimeTypes string `ini:"allowed_mime_types"`

	// UploadRateLimit is the number of uploads allowed per source
	// address per minute. Minimum: 1, Default: 5
	UploadRateLimit int `ini:"upload_rate_limit"`

	// FailureThreshold is the number of failed lookups from one source
	// before it is blocked. Minimum: 1, Default: 5
	FailureThreshold int `ini:"failure_threshold"`

	// BlockWindowMinutes is how long a blocked source stays blocked.
	// Minimum: 1, Default: 15
	BlockWindowMinutes int `ini:"block_window_minutes"`
}

// Validation errors
var (
	ErrInvalidIndexURL         = errors.New("index url must start with redis://")
	ErrMissingWordlist         = errors.New("wordlist_path does not point to an existing file")
	ErrMissingStoragePath      = errors.New("storage path is required")
	ErrInvalidMaxFileSize      = errors.New("max_file_size must be positive")
	ErrInvalidShredPasses      = errors.New("secure_delete_passes must be at least 1")
	ErrInvalidCleanupInterval  = errors.New("cleanup_interval_minutes must be between 1 and 60")
	ErrInvalidOrphanAge        = errors.New("orphan_age_minutes must exceed the maximum expiry of 60 minutes")
	ErrInvalidUploadRateLimit  = errors.New("upload_rate_limit must be at least 1")
	ErrInvalidFailureThreshold = errors.New("failure_threshold must be at least 1")
	ErrInvalidBlockWindow      = errors.New("block_window_minutes must be at least 1")
)

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
			BaseURL:    "http://localhost:8000",
			LogLevel:   "info",
		},
		Index: IndexConfig{
			URL: "redis://localhost:6379/0",
		},
		Storage: StorageConfig{
			Path:                   "./storage",
			WordlistPath:           "./eff_large_wordlist.txt",
			SecureDeletePasses:     constants.DefaultShredPasses,
			CleanupIntervalMinutes: constants.DefaultCleanupIntervalMinutes,
			OrphanAgeMinutes:       constants.DefaultOrphanAgeMinutes,
		},
		Limits: LimitsConfig{
			MaxFileSize:        constants.DefaultMaxFileSize,
			AllowedMimeTypes:   "",
			UploadRateLimit:    constants.DefaultUploadRateLimit,
			FailureThreshold:   constants.DefaultFailureThreshold,
			BlockWindowMinutes: constants.DefaultBlockWindowMinutes,
		},
	}
}

// Load assembles the configuration. path names an INI file that must
// exist; with an empty path the default file is used when present and
// silently skipped otherwise. A .env file in the working directory is
// exported into the environment first, then EMBER_* variables override
// whatever the files set.
func Load(path string) (*Config, error) {
	cfg := New()

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
	} else {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths normalizes the storage and wordlist paths so relative or
// ~-prefixed values behave the same no matter where the process was
// started from. Empty values are left for Validate to reject.
func (cfg *Config) resolvePaths() error {
	if strings.TrimSpace(cfg.Storage.Path) != "" {
		resolved, err := pathutil.ResolveAbsolutePath(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve storage path: %w", err)
		}
		cfg.Storage.Path = resolved
	}
	if strings.TrimSpace(cfg.Storage.WordlistPath) != "" {
		resolved, err := pathutil.ResolveAbsolutePath(cfg.Storage.WordlistPath)
		if err != nil {
			return fmt.Errorf("failed to resolve wordlist path: %w", err)
		}
		cfg.Storage.WordlistPath = resolved
	}
	return nil
}

// loadDotEnv exports the KEY=VALUE pairs of a dotenv file into the
// process environment. Variables already present win; a missing file is
// not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	envFile, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, key := range envFile.Section("").Keys() {
		if _, present := os.LookupEnv(key.Name()); present {
			continue
		}
		if err := os.Setenv(key.Name(), key.Value()); err != nil {
			return fmt.Errorf("failed to export %s from %s: %w", key.Name(), path, err)
		}
	}
	return nil
}

// applyFile overlays values from an INI file onto cfg.
func (cfg *Config) applyFile(path string) error {
	iniFile, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	server := iniFile.Section("server")
	cfg.Server.ListenAddr = server.Key("listen_addr").MustString(cfg.Server.ListenAddr)
	cfg.Server.BaseURL = server.Key("base_url").MustString(cfg.Server.BaseURL)
	cfg.Server.LogLevel = server.Key("log_level").MustString(cfg.Server.LogLevel)

	index := iniFile.Section("index")
	cfg.Index.URL = index.Key("url").MustString(cfg.Index.URL)

	storage := iniFile.Section("storage")
	cfg.Storage.Path = storage.Key("path").MustString(cfg.Storage.Path)
	cfg.Storage.WordlistPath = storage.Key("wordlist_path").MustString(cfg.Storage.WordlistPath)
	cfg.Storage.SecureDeletePasses = storage.Key("secure_delete_passes").MustInt(cfg.Storage.SecureDeletePasses)
	cfg.Storage.CleanupIntervalMinutes = storage.Key("cleanup_interval_minutes").MustInt(cfg.Storage.CleanupIntervalMinutes)
	cfg.Storage.OrphanAgeMinutes = storage.Key("orphan_age_minutes").MustInt(cfg.Storage.OrphanAgeMinutes)

	limits := iniFile.Section("limits")
	cfg.Limits.MaxFileSize = limits.Key("max_file_size").MustInt64(cfg.Limits.MaxFileSize)
	cfg.Limits.AllowedMimeTypes = limits.Key("allowed_mime_types").MustString(cfg.Limits.AllowedMimeTypes)
	cfg.Limits.UploadRateLimit = limits.Key("upload_rate_limit").MustInt(cfg.Limits.UploadRateLimit)
	cfg.Limits.FailureThreshold = limits.Key("failure_threshold").MustInt(cfg.Limits.FailureThreshold)
	cfg.Limits.BlockWindowMinutes = limits.Key("block_window_minutes").MustInt(cfg.Limits.BlockWindowMinutes)

	return nil
}

// applyEnv overlays EMBER_* environment variables onto cfg. Malformed
// numeric values are startup errors, not silent fallbacks.
func (cfg *Config) applyEnv() error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	var envErr error
	setInt := func(name string, dst *int) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			envErr = fmt.Errorf("%s: invalid integer %q", name, v)
			return
		}
		*dst = n
	}

	setString("EMBER_LISTEN_ADDR", &cfg.Server.ListenAddr)
	setString("EMBER_BASE_URL", &cfg.Server.BaseURL)
	setString("EMBER_LOG_LEVEL", &cfg.Server.LogLevel)
	setString("EMBER_REDIS_URL", &cfg.Index.URL)
	setString("EMBER_STORAGE_PATH", &cfg.Storage.Path)
	setString("EMBER_WORDLIST_PATH", &cfg.Storage.WordlistPath)
	setInt("EMBER_SECURE_DELETE_PASSES", &cfg.Storage.SecureDeletePasses)
	setInt("EMBER_CLEANUP_INTERVAL_MINUTES", &cfg.Storage.CleanupIntervalMinutes)
	setInt("EMBER_ORPHAN_AGE_MINUTES", &cfg.Storage.OrphanAgeMinutes)
	setString("EMBER_ALLOWED_MIME_TYPES", &cfg.Limits.AllowedMimeTypes)
	setInt("EMBER_UPLOAD_RATE_LIMIT", &cfg.Limits.UploadRateLimit)
	setInt("EMBER_FAILURE_THRESHOLD", &cfg.Limits.FailureThreshold)
	setInt("EMBER_BLOCK_WINDOW_MINUTES", &cfg.Limits.BlockWindowMinutes)

	if v, ok := os.LookupEnv("EMBER_MAX_FILE_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EMBER_MAX_FILE_SIZE: invalid integer %q", v)
		}
		cfg.Limits.MaxFileSize = n
	}

	return envErr
}

// Validate checks the assembled configuration. Returns nil if valid, or
// an error describing what is wrong. Called once at startup; any error
// is fatal.
func (cfg *Config) Validate() error {
	if !strings.HasPrefix(cfg.Index.URL, "redis://") {
		return ErrInvalidIndexURL
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return ErrMissingStoragePath
	}
	if info, err := os.Stat(cfg.Storage.WordlistPath); err != nil || info.IsDir() {
		return ErrMissingWordlist
	}
	if cfg.Limits.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}
	if cfg.Storage.SecureDeletePasses < 1 {
		return ErrInvalidShredPasses
	}
	if cfg.Storage.CleanupIntervalMinutes < 1 || cfg.Storage.CleanupIntervalMinutes > 60 {
		return ErrInvalidCleanupInterval
	}
	if cfg.Storage.OrphanAgeMinutes <= constants.MaxExpiryMinutes {
		return ErrInvalidOrphanAge
	}
	if cfg.Limits.UploadRateLimit < 1 {
		return ErrInvalidUploadRateLimit
	}
	if cfg.Limits.FailureThreshold < 1 {
		return ErrInvalidFailureThreshold
	}
	if cfg.Limits.BlockWindowMinutes < 1 {
		return ErrInvalidBlockWindow
	}
	return nil
}

// AllowedMimeList returns the allow-list entries as a slice, trimmed and
// with empty entries dropped. Nil means every type is permitted.
func (cfg *Config) AllowedMimeList() []string {
	if cfg.Limits.AllowedMimeTypes == "" {
		return nil
	}
	parts := strings.Split(cfg.Limits.AllowedMimeTypes, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// CleanupInterval returns the reaper cadence as a duration.
func (cfg *Config) CleanupInterval() time.Duration {
	return time.Duration(cfg.Storage.CleanupIntervalMinutes) * time.Minute
}

// OrphanAge returns the reaper age gate as a duration.
func (cfg *Config) OrphanAge() time.Duration {
	return time.Duration(cfg.Storage.OrphanAgeMinutes) * time.Minute
}

// BlockWindow returns the throttle block window as a duration.
func (cfg *Config) BlockWindow() time.Duration {
	return time.Duration(cfg.Limits.BlockWindowMinutes) * time.Minute
}
