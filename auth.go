package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/SulePostar/finetica-sub002/internal/drive"
	"github.com/SulePostar/finetica-sub002/internal/session"
	"github.com/SulePostar/finetica-sub002/internal/sessionfile"
)

var flagRefreshToken string

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the storage provider",
		Long: `Authenticate via the browser (authorization code + PKCE).

With --refresh-token, skips the browser and seeds the session from an
existing refresh credential — for headless deployments.`,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&flagRefreshToken, "refresh-token", "", "seed the session from a refresh token (headless)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session credential",
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	if cfg.ClientID == "" {
		return fmt.Errorf("login: client_id is not configured (set it in the config file or FINETICA_CLIENT_ID)")
	}

	registry := newSessionRegistry(cfg, logger)
	manager := registry.Get(session.DefaultTenant)

	if flagRefreshToken != "" {
		if err := manager.Seed(cmd.Context(), flagRefreshToken); err != nil {
			return err
		}

		statusf("Session seeded from refresh token.\n")

		return nil
	}

	oauthCfg := drive.OAuthConfig(cfg.ClientID, cfg.ClientSecret)

	tok, err := drive.Login(cmd.Context(), oauthCfg, openBrowser, logger)
	if err != nil {
		return err
	}

	if err := manager.Store(tok, sessionfile.AcquiredViaBrowser); err != nil {
		return err
	}

	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	registry := newSessionRegistry(cfg, logger)
	if err := registry.Get(session.DefaultTenant).Clear(); err != nil {
		return err
	}

	logger.Info("logout successful")
	statusf("Logged out.\n")

	return nil
}

// openBrowser launches the platform's default browser at the given URL.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
