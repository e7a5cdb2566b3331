package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embershare/ember/internal/config"
	"github.com/embershare/ember/internal/health"
	"github.com/embershare/ember/internal/identifier"
	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/reaper"
	"github.com/embershare/ember/internal/server"
	"github.com/embershare/ember/internal/share"
	"github.com/embershare/ember/internal/storage"
	"github.com/embershare/ember/internal/throttle"
	"github.com/embershare/ember/internal/validation"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sharing service",
		Long: `Start the HTTP server together with the background orphan reaper.

The service needs a reachable Redis instance for metadata, a writable
storage directory for encrypted blobs, and a 7776-entry wordlist for
identifier generation. All three come from the configuration file,
EMBER_* environment variables, or built-in defaults.

Press Ctrl+C to stop; in-flight requests are drained before exit.

Examples:
  # Run with defaults (redis://localhost:6379/0, ./storage)
  ember serve

  # Run with a config file
  ember serve --config /etc/ember/ember.ini

  # Override the listen address
  ember serve --listen :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, listenAddr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, listenAddr string) error {
	log := GetLogger()
	ctx := GetContext()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The config file's log level applies unless the flag said otherwise.
	if !cmd.Root().PersistentFlags().Changed("log-level") {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.Server.LogLevel))
	}

	wl, err := identifier.LoadWordlist(cfg.Storage.WordlistPath)
	if err != nil {
		return fmt.Errorf("failed to load wordlist: %w", err)
	}

	rdb, err := index.Connect(cfg.Index.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to index: %w", err)
	}
	defer rdb.Close()

	ix := index.New(rdb, log)
	if err := ix.Ping(ctx); err != nil {
		return err
	}

	paths, err := storage.NewPaths(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to prepare storage: %w", err)
	}
	repo := storage.NewRepository(log, cfg.Storage.SecureDeletePasses)

	th := throttle.New(rdb, log, cfg.Limits.FailureThreshold, cfg.BlockWindow(), cfg.Limits.UploadRateLimit)

	svc := share.NewService(share.Deps{
		Index:     ix,
		Throttle:  th,
		Repo:      repo,
		Paths:     paths,
		Generator: identifier.NewGenerator(wl),
		Chain: validation.Chain{
			validation.SizeValidator{Max: cfg.Limits.MaxFileSize},
			validation.MimeAllowlistValidator{Allowed: cfg.AllowedMimeList()},
		},
		Log:     log,
		BaseURL: cfg.Server.BaseURL,
	})

	reporter := health.New(ix, paths, wl.Count(), Version, health.StartTracker(), log)

	rp := reaper.New(ix, repo, paths, cfg.CleanupInterval(), cfg.OrphanAge(), log)
	if err := rp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reaper: %w", err)
	}

	log.Info().
		Str("version", Version).
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("base_url", cfg.Server.BaseURL).
		Str("storage_path", cfg.Storage.Path).
		Str("index_url", cfg.Index.URL).
		Msg("Ember starting")

	srv := server.New(server.Deps{
		Service:     svc,
		Health:      reporter,
		Gate:        th,
		Log:         log,
		ListenAddr:  cfg.Server.ListenAddr,
		MaxFileSize: cfg.Limits.MaxFileSize,
	})
	runErr := srv.Run(ctx)

	// Orderly teardown: stop sweeping, then let scheduled destructions
	// finish before the Redis client goes away.
	rp.Stop()
	svc.Wait()

	if runErr != nil {
		return runErr
	}
	log.Info().Msg("Ember stopped")
	return nil
}
