package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SulePostar/finetica-sub002/internal/drive"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestManifest(t *testing.T) *Manifest {
	t.Helper()

	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m
}

// fakeClient implements the Client interface against in-memory fixtures.
type fakeClient struct {
	folderID string
	files    []drive.File
	contents map[string]string // fileID → body for raw downloads
	exports  map[string]string // fileID → body for exports
	failIDs  map[string]bool   // fileIDs whose transfer always fails

	// rejectPrimary lists fileIDs whose primary export format is refused,
	// forcing the fallback path.
	rejectPrimary map[string]bool

	downloadCalls atomic.Int32
	exportCalls   atomic.Int32
}

func (f *fakeClient) FindFolder(_ context.Context, _ string) (string, error) {
	if f.folderID == "" {
		return "", drive.ErrFolderNotFound
	}

	return f.folderID, nil
}

func (f *fakeClient) ListFolder(_ context.Context, _ string, _ int) ([]drive.File, error) {
	return f.files, nil
}

func (f *fakeClient) Download(_ context.Context, fileID string, w io.Writer) (int64, error) {
	f.downloadCalls.Add(1)

	if f.failIDs[fileID] {
		return 0, errors.New("simulated network failure")
	}

	body, ok := f.contents[fileID]
	if !ok {
		return 0, fmt.Errorf("no fixture for %s", fileID)
	}

	n, err := io.WriteString(w, body)

	return int64(n), err
}

func (f *fakeClient) Export(_ context.Context, fileID, mimeType string, w io.Writer) (int64, error) {
	f.exportCalls.Add(1)

	if f.failIDs[fileID] {
		return 0, errors.New("simulated export failure")
	}

	if f.rejectPrimary[fileID] && mimeType != "text/csv" {
		return 0, fmt.Errorf("export as %s: %w", mimeType, drive.ErrExportRejected)
	}

	body, ok := f.exports[fileID]
	if !ok {
		return 0, fmt.Errorf("no export fixture for %s", fileID)
	}

	n, err := io.WriteString(w, body)

	return int64(n), err
}

func transferCalls(f *fakeClient) int32 {
	return f.downloadCalls.Load() + f.exportCalls.Load()
}

func remoteFile(id, name, mimeType string, modifiedAt time.Time) drive.File {
	return drive.File{ID: id, Name: name, MimeType: mimeType, ModifiedAt: modifiedAt}
}
