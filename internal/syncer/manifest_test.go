package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestLookupMissing(t *testing.T) {
	m := openTestManifest(t)

	entry, err := m.Lookup(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestManifestRecordAndLookup(t *testing.T) {
	m := openTestManifest(t)
	ctx := context.Background()

	remoteMod := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	syncedAt := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	f := remoteFile("f1", "invoice.pdf", "application/pdf", remoteMod)

	require.NoError(t, m.Record(ctx, f, "invoice.pdf", KindDownloaded, syncedAt))

	entry, err := m.Lookup(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "invoice.pdf", entry.Name)
	assert.Equal(t, "invoice.pdf", entry.LocalName)
	assert.Equal(t, KindDownloaded, entry.Kind)
	assert.True(t, entry.RemoteModifiedAt.Equal(remoteMod))
	assert.True(t, entry.SyncedAt.Equal(syncedAt))
}

func TestManifestRecordUpserts(t *testing.T) {
	m := openTestManifest(t)
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	f := remoteFile("f1", "budget", "application/vnd.google-apps.spreadsheet", first)
	require.NoError(t, m.Record(ctx, f, "budget.xlsx", KindExported, first))

	f.ModifiedAt = second
	require.NoError(t, m.Record(ctx, f, "budget.csv", KindExported, second))

	entry, err := m.Lookup(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "budget.csv", entry.LocalName)
	assert.True(t, entry.RemoteModifiedAt.Equal(second))
}

func TestManifestLastRunRoundtrip(t *testing.T) {
	m := openTestManifest(t)
	ctx := context.Background()

	// Never ran → nil.
	last, err := m.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	s := Summary{
		TotalChecked: 3,
		Downloaded:   2,
		Skipped:      1,
		FolderName:   "Finetica",
		Timestamp:    time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, m.SaveLastRun(ctx, s))

	last, err = m.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, s.TotalChecked, last.TotalChecked)
	assert.Equal(t, s.Downloaded, last.Downloaded)
	assert.Equal(t, s.FolderName, last.FolderName)
	assert.True(t, last.Timestamp.Equal(s.Timestamp))

	// Saving again overwrites the single row.
	s.Downloaded = 0
	s.Skipped = 3
	require.NoError(t, m.SaveLastRun(ctx, s))

	last, err = m.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 0, last.Downloaded)
	assert.Equal(t, 3, last.Skipped)
}

func TestManifestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/manifest.db"
	ctx := context.Background()

	m, err := OpenManifest(path, testLogger())
	require.NoError(t, err)

	remoteMod := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := remoteFile("f1", "invoice.pdf", "application/pdf", remoteMod)
	require.NoError(t, m.Record(ctx, f, "invoice.pdf", KindDownloaded, remoteMod))
	require.NoError(t, m.Close())

	reopened, err := OpenManifest(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	entry, err := reopened.Lookup(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "invoice.pdf", entry.LocalName)
}
