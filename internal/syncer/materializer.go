package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/SulePostar/finetica-sub002/internal/drive"
)

// TransferClient is the slice of the drive client the materializer needs.
// Defined at the consumer so tests can stub transfers without HTTP.
type TransferClient interface {
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
	Export(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error)
}

// Materializer executes planned transfers into the sink directory. Files
// are staged to a temp path and renamed on completion so a canceled or
// failed transfer never leaves a partial file at the final name. After a
// successful write the local modification time is set to the remote one —
// that stamp is what keeps the planner's filesystem fallback idempotent.
type Materializer struct {
	sinkDir  string
	manifest *Manifest
	logger   *slog.Logger

	now func() time.Time // test hook
}

// NewMaterializer creates a materializer writing into sinkDir.
func NewMaterializer(sinkDir string, manifest *Manifest, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Materializer{sinkDir: sinkDir, manifest: manifest, logger: logger, now: time.Now}
}

// Materialize executes one planned transfer and returns its outcome.
// Errors are captured in the outcome, never returned: a failing file is
// isolated so the caller can continue with the rest of the batch.
func (m *Materializer) Materialize(ctx context.Context, client TransferClient, plan Plan) Outcome {
	if plan.Decision == DecisionUpToDate {
		return Outcome{File: plan.File, Kind: KindSkipped, LocalName: plan.LocalName}
	}

	outcome, err := m.transfer(ctx, client, plan)
	if err != nil {
		m.logger.Warn("transfer failed",
			slog.String("file", plan.File.Name),
			slog.String("file_id", plan.File.ID),
			slog.String("error", err.Error()),
		)

		return Outcome{File: plan.File, Kind: KindError, LocalName: plan.LocalName, Reason: err.Error()}
	}

	return outcome
}

// transfer fetches the file content into a temp file and promotes it to
// the final sink name.
func (m *Materializer) transfer(ctx context.Context, client TransferClient, plan Plan) (Outcome, error) {
	if err := os.MkdirAll(m.sinkDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("syncer: creating sink directory: %w", err)
	}

	localName := plan.LocalName
	kind := KindDownloaded

	var (
		bytes int64
		err   error
	)

	if drive.IsNative(plan.File.MimeType) {
		kind = KindExported
		bytes, localName, err = m.exportWithFallback(ctx, client, plan)
	} else {
		bytes, err = m.stage(ctx, localName, plan.File.ModifiedAt, func(w io.Writer) (int64, error) {
			return client.Download(ctx, plan.File.ID, w)
		})
	}

	if err != nil {
		return Outcome{}, err
	}

	if recErr := m.manifest.Record(ctx, plan.File, localName, kind, m.now()); recErr != nil {
		// The file is in the sink; a manifest miss only costs a re-check
		// next run via the mtime fallback.
		m.logger.Warn("manifest record failed",
			slog.String("file_id", plan.File.ID),
			slog.String("error", recErr.Error()),
		)
	}

	m.logger.Info("materialized file",
		slog.String("file", plan.File.Name),
		slog.String("local_name", localName),
		slog.String("kind", string(kind)),
		slog.Int64("bytes", bytes),
	)

	return Outcome{File: plan.File, Kind: kind, LocalName: localName, Bytes: bytes}, nil
}

// exportWithFallback requests the primary export format; if the provider
// rejects the format and a documented fallback exists (spreadsheet → CSV),
// it is attempted exactly once. Returns the bytes written and the local
// name actually used, which differs from the plan when the fallback fires.
func (m *Materializer) exportWithFallback(ctx context.Context, client TransferClient, plan Plan) (int64, string, error) {
	primary := drive.ExportFormatFor(plan.File.MimeType)

	bytes, err := m.stage(ctx, plan.LocalName, plan.File.ModifiedAt, func(w io.Writer) (int64, error) {
		return client.Export(ctx, plan.File.ID, primary.MimeType, w)
	})
	if err == nil {
		return bytes, plan.LocalName, nil
	}

	fallback, ok := drive.FallbackFormatFor(plan.File.MimeType)
	if !ok || !errors.Is(err, drive.ErrExportRejected) {
		return 0, "", err
	}

	m.logger.Warn("primary export rejected, trying fallback",
		slog.String("file", plan.File.Name),
		slog.String("primary", primary.MimeType),
		slog.String("fallback", fallback.MimeType),
	)

	fallbackName := norm.NFC.String(plan.File.Name) + fallback.Extension

	bytes, err = m.stage(ctx, fallbackName, plan.File.ModifiedAt, func(w io.Writer) (int64, error) {
		return client.Export(ctx, plan.File.ID, fallback.MimeType, w)
	})
	if err != nil {
		return 0, "", fmt.Errorf("syncer: fallback export also failed: %w", err)
	}

	return bytes, fallbackName, nil
}

// stage writes content to a temp file in the sink directory, stamps the
// modification time to the remote value, and renames into place. The
// temp-then-rename order means shutdown mid-transfer leaves no partial
// file at the final name.
func (m *Materializer) stage(ctx context.Context, localName string, remoteModifiedAt time.Time, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(m.sinkDir, ".sync-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("syncer: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bytes, err := write(tmp)
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("syncer: transfer canceled: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncer: syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("syncer: closing temp file: %w", err)
	}

	// Stamp local mtime to the remote modification time, not "now". This
	// is the only signal the planner's fallback path has to avoid
	// re-downloading unchanged files.
	if err := os.Chtimes(tmpPath, remoteModifiedAt, remoteModifiedAt); err != nil {
		return 0, fmt.Errorf("syncer: stamping modification time: %w", err)
	}

	dest := filepath.Join(m.sinkDir, localName)
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("syncer: renaming into sink: %w", err)
	}

	success = true

	return bytes, nil
}
