package syncer

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/SulePostar/finetica-sub002/internal/drive"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// ManifestEntry records that a remote file was synced at a given remote
// modification time. The manifest is the authoritative idempotence signal;
// filesystem timestamps are only a fallback for files it has never seen.
type ManifestEntry struct {
	FileID           string
	Name             string
	LocalName        string
	RemoteModifiedAt time.Time
	SyncedAt         time.Time
	Kind             OutcomeKind
}

// Manifest is the durable sync state store, backed by an embedded SQLite
// database in WAL mode. Use ":memory:" for tests.
type Manifest struct {
	db     *sql.DB
	logger *slog.Logger

	// Prepared statements for repeated queries.
	getStmt     *sql.Stmt
	upsertStmt  *sql.Stmt
	lastRunGet  *sql.Stmt
	lastRunSave *sql.Stmt
}

// OpenManifest opens the manifest database at dbPath, applying pragmas and
// pending schema migrations.
func OpenManifest(dbPath string, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening sync manifest database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("syncer: opening sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	m := &Manifest{db: db, logger: logger}

	if err := m.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("syncer: preparing statements: %w", err)
	}

	return m, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("syncer: setting pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

// runMigrations applies all pending schema migrations to the database.
// Uses the goose v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	// Strip the "migrations/" prefix so goose sees files at the root of the FS.
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("syncer: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("syncer: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("syncer: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (m *Manifest) prepareStatements(ctx context.Context) error {
	var err error

	m.getStmt, err = m.db.PrepareContext(ctx,
		`SELECT file_id, name, local_name, remote_modified_at, synced_at, kind
		 FROM manifest WHERE file_id = ?`)
	if err != nil {
		return err
	}

	m.upsertStmt, err = m.db.PrepareContext(ctx,
		`INSERT INTO manifest (file_id, name, local_name, remote_modified_at, synced_at, kind)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
		   name = excluded.name,
		   local_name = excluded.local_name,
		   remote_modified_at = excluded.remote_modified_at,
		   synced_at = excluded.synced_at,
		   kind = excluded.kind`)
	if err != nil {
		return err
	}

	m.lastRunGet, err = m.db.PrepareContext(ctx,
		`SELECT total_checked, downloaded, skipped, errors, folder_name, finished_at
		 FROM last_run WHERE id = 1`)
	if err != nil {
		return err
	}

	m.lastRunSave, err = m.db.PrepareContext(ctx,
		`INSERT INTO last_run (id, total_checked, downloaded, skipped, errors, folder_name, finished_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   total_checked = excluded.total_checked,
		   downloaded = excluded.downloaded,
		   skipped = excluded.skipped,
		   errors = excluded.errors,
		   folder_name = excluded.folder_name,
		   finished_at = excluded.finished_at`)

	return err
}

// Lookup returns the manifest entry for a file id, or (nil, nil) if the
// file has never been synced.
func (m *Manifest) Lookup(ctx context.Context, fileID string) (*ManifestEntry, error) {
	var (
		entry              ManifestEntry
		remoteNS, syncedNS int64
		kind               string
	)

	err := m.getStmt.QueryRowContext(ctx, fileID).Scan(
		&entry.FileID, &entry.Name, &entry.LocalName, &remoteNS, &syncedNS, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "never synced"
	}

	if err != nil {
		return nil, fmt.Errorf("syncer: manifest lookup for %s: %w", fileID, err)
	}

	entry.RemoteModifiedAt = time.Unix(0, remoteNS).UTC()
	entry.SyncedAt = time.Unix(0, syncedNS).UTC()
	entry.Kind = OutcomeKind(kind)

	return &entry, nil
}

// Record upserts a manifest entry after a successful transfer.
func (m *Manifest) Record(ctx context.Context, file drive.File, localName string, kind OutcomeKind, syncedAt time.Time) error {
	_, err := m.upsertStmt.ExecContext(ctx,
		file.ID, file.Name, localName,
		file.ModifiedAt.UnixNano(), syncedAt.UnixNano(), string(kind))
	if err != nil {
		return fmt.Errorf("syncer: recording manifest entry for %s: %w", file.ID, err)
	}

	return nil
}

// LastRun returns the persisted summary of the most recent completed tick,
// or (nil, nil) if no tick has completed yet.
func (m *Manifest) LastRun(ctx context.Context) (*Summary, error) {
	var (
		s          Summary
		finishedNS int64
	)

	err := m.lastRunGet.QueryRowContext(ctx).Scan(
		&s.TotalChecked, &s.Downloaded, &s.Skipped, &s.Errors, &s.FolderName, &finishedNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "never ran"
	}

	if err != nil {
		return nil, fmt.Errorf("syncer: reading last run: %w", err)
	}

	s.Timestamp = time.Unix(0, finishedNS).UTC()

	return &s, nil
}

// SaveLastRun persists the summary of a completed tick.
func (m *Manifest) SaveLastRun(ctx context.Context, s Summary) error {
	_, err := m.lastRunSave.ExecContext(ctx,
		s.TotalChecked, s.Downloaded, s.Skipped, s.Errors, s.FolderName, s.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("syncer: saving last run: %w", err)
	}

	return nil
}

// Close releases prepared statements and the database handle.
func (m *Manifest) Close() error {
	for _, stmt := range []*sql.Stmt{m.getStmt, m.upsertStmt, m.lastRunGet, m.lastRunSave} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return m.db.Close()
}
