// Package session owns the credential lifecycle: it decides whether the
// stored access token is still usable, refreshes it against the provider
// when it is not, and hands downstream components an opaque authenticated
// handle. Raw credentials never leave this package.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/SulePostar/finetica-sub002/internal/drive"
	"github.com/SulePostar/finetica-sub002/internal/sessionfile"
)

// Session TTL policy, one constant per acquisition path. A browser login
// is valid for 24 hours; a session seeded or renewed through a refresh
// exchange is valid for 30 days. A successful refresh re-stamps the
// session as refresh-acquired, so the 30-day window applies from then on.
const (
	BrowserSessionTTL = 24 * time.Hour
	RefreshSessionTTL = 30 * 24 * time.Hour
)

// Sentinel errors for session validity. Both mean "unauthenticated, log in
// again"; they differ only in what the operator is told.
var (
	ErrNoSession      = errors.New("session: no credential")
	ErrSessionExpired = errors.New("session: expired, no refresh token")
)

// Handle is the opaque authenticated-client credential passed to the drive
// client. It implements drive.TokenSource over a fixed access token whose
// validity the Manager has already established for the current tick.
type Handle struct {
	accessToken string
}

// Token implements drive.TokenSource.
func (h *Handle) Token() (string, error) {
	if h.accessToken == "" {
		return "", ErrNoSession
	}

	return h.accessToken, nil
}

// Manager loads, validates, refreshes, and persists one tenant's session.
// The scheduler's one-tick-at-a-time invariant means EnsureValid is never
// called concurrently for the same tenant, but the mutex keeps the
// read-modify-write atomic if a manual trigger ever races the timer.
type Manager struct {
	path   string
	oauth  *oauth2.Config
	logger *slog.Logger

	mu sync.Mutex

	// Test hooks.
	now     func() time.Time
	refresh func(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error)
}

// NewManager creates a session manager persisting to the given path.
func NewManager(path string, oauth *oauth2.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		path:    path,
		oauth:   oauth,
		logger:  logger,
		now:     time.Now,
		refresh: drive.Refresh,
	}
}

// ttlFor returns the validity window for a session by acquisition path.
func ttlFor(acquiredVia string) time.Duration {
	if acquiredVia == sessionfile.AcquiredViaRefresh {
		return RefreshSessionTTL
	}

	return BrowserSessionTTL
}

// EnsureValid returns an authenticated handle for the current tick.
//
// Within the TTL the stored access token is used as-is. Past the TTL a
// refresh exchange is attempted if a refresh token is present; success
// replaces the access token and resets the session window, and the updated
// session is persisted immediately (the single mutation point for session
// state). A refresh failure is a hard retry boundary: the stored session is
// cleared entirely and the error is returned — the next scheduled tick
// starts fresh. Expiry without a refresh token also clears the session.
func (m *Manager) EnsureValid(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sf, err := sessionfile.Load(m.path)
	if err != nil {
		return nil, fmt.Errorf("session: loading credential: %w", err)
	}

	if sf == nil {
		return nil, ErrNoSession
	}

	age := m.now().Sub(sf.CreatedAt)
	ttl := ttlFor(sf.AcquiredVia)

	if age < ttl {
		m.logger.Debug("session valid",
			slog.Duration("age", age),
			slog.String("acquired_via", sf.AcquiredVia),
		)

		return &Handle{accessToken: sf.Token.AccessToken}, nil
	}

	if sf.Token.RefreshToken == "" {
		m.logger.Warn("session expired with no refresh token, clearing",
			slog.Duration("age", age),
		)

		if rmErr := sessionfile.Remove(m.path); rmErr != nil {
			m.logger.Warn("failed to clear expired session", slog.String("error", rmErr.Error()))
		}

		return nil, ErrSessionExpired
	}

	m.logger.Info("session expired, attempting refresh",
		slog.Duration("age", age),
		slog.String("acquired_via", sf.AcquiredVia),
	)

	tok, refreshErr := m.refresh(ctx, m.oauth, sf.Token.RefreshToken)
	if refreshErr != nil {
		// Treat as logged out. Never silently retried within the run.
		if rmErr := sessionfile.Remove(m.path); rmErr != nil {
			m.logger.Warn("failed to clear session after refresh failure",
				slog.String("error", rmErr.Error()),
			)
		}

		m.logger.Error("refresh failed, session cleared",
			slog.String("error", refreshErr.Error()),
		)

		return nil, fmt.Errorf("session: refresh failed: %w", refreshErr)
	}

	updated := &sessionfile.File{
		Token:       tok,
		CreatedAt:   m.now(),
		AcquiredVia: sessionfile.AcquiredViaRefresh,
	}

	if saveErr := sessionfile.Save(m.path, updated); saveErr != nil {
		return nil, fmt.Errorf("session: persisting refreshed credential: %w", saveErr)
	}

	m.logger.Info("session refreshed",
		slog.Time("expiry", tok.Expiry),
	)

	return &Handle{accessToken: tok.AccessToken}, nil
}

// Store persists a freshly acquired token, stamping the session window.
// Used by the login flow after a browser authorization.
func (m *Manager) Store(tok *oauth2.Token, acquiredVia string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sf := &sessionfile.File{
		Token:       tok,
		CreatedAt:   m.now(),
		AcquiredVia: acquiredVia,
	}

	if err := sessionfile.Save(m.path, sf); err != nil {
		return fmt.Errorf("session: persisting credential: %w", err)
	}

	m.logger.Info("session stored",
		slog.String("acquired_via", acquiredVia),
		slog.Bool("has_refresh_token", tok.RefreshToken != ""),
	)

	return nil
}

// Seed exchanges a standalone refresh token for an access token and stores
// the resulting session. Supports headless deployments where the refresh
// credential is provisioned out of band.
func (m *Manager) Seed(ctx context.Context, refreshToken string) error {
	tok, err := m.refresh(ctx, m.oauth, refreshToken)
	if err != nil {
		return fmt.Errorf("session: seeding from refresh token: %w", err)
	}

	return m.Store(tok, sessionfile.AcquiredViaRefresh)
}

// Clear removes the stored session. Returns nil if none exists.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sessionfile.Remove(m.path)
}

// HasSession reports whether a credential is currently stored, without
// validating it.
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sf, err := sessionfile.Load(m.path)

	return err == nil && sf != nil
}
