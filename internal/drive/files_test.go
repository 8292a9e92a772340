package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFolderResolvesID(t *testing.T) {
	var gotQuery string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"files": [{"id": "folder-123", "name": "Invoices"}]}`)
	})

	id, err := c.FindFolder(context.Background(), "Invoices")
	require.NoError(t, err)

	assert.Equal(t, "folder-123", id)
	assert.Equal(t,
		"name = 'Invoices' and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
		gotQuery)
}

func TestFindFolderEscapesName(t *testing.T) {
	var gotQuery string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"files": [{"id": "f1"}]}`)
	})

	_, err := c.FindFolder(context.Background(), "O'Brien's docs")
	require.NoError(t, err)

	assert.Contains(t, gotQuery, `name = 'O\'Brien\'s docs'`)
}

func TestFindFolderNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files": []}`)
	})

	_, err := c.FindFolder(context.Background(), "Missing")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestFindFolderTakesFirstMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files": [{"id": "first"}, {"id": "second"}]}`)
	})

	id, err := c.FindFolder(context.Background(), "Dup")
	require.NoError(t, err)
	assert.Equal(t, "first", id)
}

func TestListFolderFollowsPagination(t *testing.T) {
	pages := map[string]string{
		"": `{"files": [
				{"id": "f1", "name": "a.pdf", "mimeType": "application/pdf",
				 "size": "1024", "modifiedTime": "2024-05-01T10:00:00Z"}
			], "nextPageToken": "page2"}`,
		"page2": `{"files": [
				{"id": "f2", "name": "Budget", "mimeType": "application/vnd.google-apps.spreadsheet",
				 "modifiedTime": "2024-04-30T08:30:00Z"}
			]}`,
	}

	var tokens []string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		fmt.Fprint(w, pages[token])
	})

	files, err := c.ListFolder(context.Background(), "folder-1", 10)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, []string{"", "page2"}, tokens)

	// Binary file: size parsed from the quoted decimal string.
	assert.Equal(t, "f1", files[0].ID)
	assert.Equal(t, int64(1024), files[0].Size)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), files[0].ModifiedAt)

	// Native file: size omitted by the API, normalized to zero.
	assert.Equal(t, "f2", files[1].ID)
	assert.Zero(t, files[1].Size)
	assert.Equal(t, "application/vnd.google-apps.spreadsheet", files[1].MimeType)
}

func TestListFolderQueryShape(t *testing.T) {
	var gotQuery map[string][]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"files": []}`)
	})

	_, err := c.ListFolder(context.Background(), "folder-9", 25)
	require.NoError(t, err)

	assert.Equal(t, "modifiedTime desc", gotQuery["orderBy"][0])
	assert.Equal(t, "25", gotQuery["pageSize"][0])
	assert.Contains(t, gotQuery["q"][0], "'folder-9' in parents")
	assert.Contains(t, gotQuery["q"][0], "trashed = false")
	assert.Contains(t, gotQuery["q"][0], "mimeType != 'application/vnd.google-apps.folder'")
}

func TestToFileToleratesBadMetadata(t *testing.T) {
	raw := fileResponse{
		ID:           "f3",
		Name:         "weird.bin",
		Size:         "not-a-number",
		ModifiedTime: "yesterday",
	}

	f := raw.toFile(testLogger())

	assert.Zero(t, f.Size)
	assert.True(t, f.ModifiedAt.IsZero())
}

func TestListFolderDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{not json`)
	})

	_, err := c.ListFolder(context.Background(), "folder-1", 10)
	require.Error(t, err)

	var jsonErr *json.SyntaxError
	assert.ErrorAs(t, err, &jsonErr)
}
