package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection state and last sync time",
		Long: `Display the engine's introspection surface: whether a credential is
stored, whether a tick is currently running, the configured cadence, and
the timestamp of the last completed synchronization.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	st := scheduler.Status(cmd.Context())

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(st)
	}

	connected := "not connected"
	if st.Connected {
		connected = "connected"
	}

	statusf("Provider: %s (token stored: %v)\n", connected, st.HasToken)
	statusf("Sync interval: %s\n", st.SyncInterval)

	if st.LastSync != nil {
		statusf("Last sync: %s\n", st.LastSync.Local().Format("2006-01-02 15:04:05"))
	} else {
		statusf("Last sync: never\n")
	}

	for _, tenant := range st.ActiveTenants {
		statusf("Active session: %s\n", tenant)
	}

	return nil
}
