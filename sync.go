package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass and exit",
		RunE:  runSync,
	}
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the synchronization scheduler until interrupted",
		Long: `Run periodic synchronization on the configured cadence.

SIGINT or SIGTERM stops the scheduler; an in-flight tick is canceled and
its partially transferred files are discarded (transfers are staged to
temp paths and only renamed into the sink on completion).`,
		RunE: runDaemon,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	scheduler, manifest, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer manifest.Close()

	summary, err := scheduler.Tick(cmd.Context())
	if err != nil {
		return err
	}

	if summary == nil {
		statusf("Sync skipped: not authenticated. Run 'finetica-sync login' first.\n")

		return nil
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	statusf("Checked %d files in %q: %d downloaded, %d up to date, %d errors.\n",
		summary.TotalChecked, summary.FolderName,
		summary.Downloaded, summary.Skipped, summary.Errors)

	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	scheduler, manifest, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer manifest.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	return nil
}
