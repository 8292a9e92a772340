package drive

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFormatTable(t *testing.T) {
	tests := []struct {
		mimeType string
		wantMime string
		wantExt  string
	}{
		{MimeSpreadsheet, exportXLSX, ".xlsx"},
		{MimeDocument, exportDOCX, ".docx"},
		{MimePresentation, exportPPTX, ".pptx"},
		{MimeDrawing, exportPDF, ".pdf"},
		{MimeForm, exportPDF, ".pdf"},
		// Unknown native types fall back to PDF.
		{"application/vnd.google-apps.jam", exportPDF, ".pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			f := ExportFormatFor(tt.mimeType)
			assert.Equal(t, tt.wantMime, f.MimeType)
			assert.Equal(t, tt.wantExt, f.Extension)
		})
	}
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative(MimeSpreadsheet))
	assert.True(t, IsNative("application/vnd.google-apps.jam"))
	assert.False(t, IsNative("application/pdf"))
	assert.False(t, IsNative("text/csv"))
}

func TestFallbackOnlyForSpreadsheets(t *testing.T) {
	f, ok := FallbackFormatFor(MimeSpreadsheet)
	require.True(t, ok)
	assert.Equal(t, exportCSV, f.MimeType)
	assert.Equal(t, ".csv", f.Extension)

	_, ok = FallbackFormatFor(MimeDocument)
	assert.False(t, ok)

	_, ok = FallbackFormatFor(MimeDrawing)
	assert.False(t, ok)
}

func TestDownloadStreamsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f1", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		fmt.Fprint(w, "binary-content")
	})

	var buf bytes.Buffer

	n, err := c.Download(context.Background(), "f1", &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(len("binary-content")), n)
	assert.Equal(t, "binary-content", buf.String())
}

func TestExportRequestsMimeType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f2/export", r.URL.Path)
		assert.Equal(t, exportXLSX, r.URL.Query().Get("mimeType"))
		fmt.Fprint(w, "xlsx-bytes")
	})

	var buf bytes.Buffer

	n, err := c.Export(context.Background(), "f2", exportXLSX, &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(len("xlsx-bytes")), n)
	assert.Equal(t, "xlsx-bytes", buf.String())
}

func TestExportRejectionIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "export size limit exceeded", http.StatusForbidden)
	})

	var buf bytes.Buffer

	_, err := c.Export(context.Background(), "f2", exportXLSX, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportRejected)
}

func TestExportServerErrorIsNotRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	var buf bytes.Buffer

	_, err := c.Export(context.Background(), "f2", exportXLSX, &buf)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExportRejected)
	assert.ErrorIs(t, err, ErrServerError)
}
