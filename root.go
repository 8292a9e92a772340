package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/SulePostar/finetica-sub002/internal/config"
	"github.com/SulePostar/finetica-sub002/internal/drive"
	"github.com/SulePostar/finetica-sub002/internal/session"
	"github.com/SulePostar/finetica-sub002/internal/syncer"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// transferTimeout bounds every provider HTTP exchange, body included, so a
// stalled connection cannot wedge a tick and starve all subsequent ones.
// Generous because a single export of a large spreadsheet can be slow.
const transferTimeout = 10 * time.Minute

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "finetica-sync",
		Short:   "Synchronize a Drive folder into the local document inbox",
		Long:    "Background synchronization engine that mirrors a designated Drive folder\ninto a local sink directory, converting provider-native documents on the way.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig resolves the effective configuration: defaults, then the
// config file (explicit path or default location), then environment.
func loadConfig() (*config.Config, error) {
	path := config.DefaultConfigPath()
	if flagConfigPath != "" {
		path = flagConfigPath
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// buildLogger creates an slog.Logger configured by the config file and CLI
// flags. Interactive terminals get the text handler; pipes and service
// managers get JSON lines.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// statusf prints user-facing progress output to stdout unless --quiet.
func statusf(format string, args ...any) {
	if flagQuiet {
		return
	}

	fmt.Printf(format, args...)
}

// sessionPathFor derives a tenant's session file path. The default tenant
// uses the configured path directly; additional tenants get a suffixed
// sibling so the registry code path stays identical at any scale.
func sessionPathFor(cfg *config.Config, tenant string) string {
	if tenant == session.DefaultTenant {
		return cfg.SessionFile
	}

	ext := filepath.Ext(cfg.SessionFile)

	return cfg.SessionFile[:len(cfg.SessionFile)-len(ext)] + "." + tenant + ext
}

// newSessionRegistry builds the keyed session registry backing the engine.
func newSessionRegistry(cfg *config.Config, logger *slog.Logger) *session.Registry {
	oauthCfg := drive.OAuthConfig(cfg.ClientID, cfg.ClientSecret)

	return session.NewRegistry(func(tenant string) *session.Manager {
		return session.NewManager(sessionPathFor(cfg, tenant), oauthCfg, logger)
	})
}

// buildEngine assembles the full sync pipeline from configuration.
// The caller owns the returned manifest and must close it.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*syncer.Scheduler, *syncer.Manifest, error) {
	interval, err := cfg.Interval()
	if err != nil {
		return nil, nil, err
	}

	manifest, err := syncer.OpenManifest(cfg.ManifestDB, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening manifest: %w", err)
	}

	registry := newSessionRegistry(cfg, logger)
	planner := syncer.NewPlanner(cfg.SinkDir, manifest, logger)
	materializer := syncer.NewMaterializer(cfg.SinkDir, manifest, logger)

	httpClient := &http.Client{Timeout: transferTimeout}
	newClient := func(ts drive.TokenSource) syncer.Client {
		return drive.NewClient(drive.DefaultBaseURL, httpClient, ts, logger)
	}

	scheduler := syncer.NewScheduler(
		syncer.Config{
			Tenant:     session.DefaultTenant,
			FolderName: cfg.FolderName,
			Interval:   interval,
			PageSize:   cfg.PageSize,
			Workers:    cfg.Workers,
		},
		registry, manifest, planner, materializer, newClient, logger,
	)

	return scheduler, manifest, nil
}
