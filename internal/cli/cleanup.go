package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embershare/ember/internal/config"
	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/reaper"
	"github.com/embershare/ember/internal/storage"
)

// newCleanupCmd creates the 'cleanup' command.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run a single orphan sweep and exit",
		Long: `Scan the storage directory once, shred any unindexed upload
directory older than the orphan age gate, and exit.

The running server sweeps on its own schedule; this command exists for
cron-style deployments and for reclaiming space after a crash while the
server is down.

Examples:
  # One sweep with defaults
  ember cleanup

  # One sweep with a config file
  ember cleanup --config /etc/ember/ember.ini`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup()
		},
	}
}

func runCleanup() error {
	log := GetLogger()
	ctx := GetContext()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
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

	rp := reaper.New(ix, repo, paths, cfg.CleanupInterval(), cfg.OrphanAge(), log)
	rp.RunOnce(ctx)
	return nil
}
