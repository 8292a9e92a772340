package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"

	"github.com/SulePostar/finetica-sub002/internal/drive"
)

// Planner classifies each remote file against local state. The manifest is
// consulted first; for file ids the manifest has never seen, the decision
// falls back to comparing the local file's modification time against the
// remote one. Clock skew between the provider and the local filesystem can
// misclassify on the fallback path — an accepted approximation, since the
// manifest takes over after the first successful sync.
type Planner struct {
	sinkDir  string
	manifest *Manifest
	logger   *slog.Logger
}

// NewPlanner creates a planner writing decisions against sinkDir.
func NewPlanner(sinkDir string, manifest *Manifest, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Planner{sinkDir: sinkDir, manifest: manifest, logger: logger}
}

// LocalNameFor derives the sink filename for a remote file. Binary files
// keep their name unchanged; provider-native documents get the export
// extension appended since the converted copy is a different format.
// Names are normalized to NFC so macOS- and Linux-written sinks agree.
func LocalNameFor(f drive.File) string {
	name := norm.NFC.String(f.Name)

	if drive.IsNative(f.MimeType) {
		name += drive.ExportFormatFor(f.MimeType).Extension
	}

	return name
}

// Classify decides whether a remote file is New, Updated, or UpToDate.
func (p *Planner) Classify(ctx context.Context, f drive.File) (Plan, error) {
	localName := LocalNameFor(f)

	// Manifest first: a recorded sync at or after the remote modification
	// time means the sink copy is current, regardless of filesystem state.
	entry, err := p.manifest.Lookup(ctx, f.ID)
	if err != nil {
		return Plan{}, fmt.Errorf("syncer: classifying %s: %w", f.Name, err)
	}

	if entry != nil {
		if !f.ModifiedAt.After(entry.RemoteModifiedAt) {
			return Plan{File: f, Decision: DecisionUpToDate, LocalName: entry.LocalName}, nil
		}

		p.logger.Debug("remote newer than manifest entry",
			slog.String("file", f.Name),
			slog.Time("remote", f.ModifiedAt),
			slog.Time("recorded", entry.RemoteModifiedAt),
		)

		return Plan{File: f, Decision: DecisionUpdated, LocalName: localName}, nil
	}

	// Fallback: no manifest row, infer from the sink filesystem.
	info, statErr := os.Stat(filepath.Join(p.sinkDir, localName))
	if errors.Is(statErr, fs.ErrNotExist) {
		return Plan{File: f, Decision: DecisionNew, LocalName: localName}, nil
	}

	if statErr != nil {
		return Plan{}, fmt.Errorf("syncer: stat %s: %w", localName, statErr)
	}

	if !info.ModTime().Before(f.ModifiedAt) {
		return Plan{File: f, Decision: DecisionUpToDate, LocalName: localName}, nil
	}

	return Plan{File: f, Decision: DecisionUpdated, LocalName: localName}, nil
}
