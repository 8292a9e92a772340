package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// File represents a Drive file entry normalized from the API response.
// Callers never see raw API data. A File is an immutable snapshot taken
// at enumeration time; it is never cached across runs.
type File struct {
	ID         string
	Name       string
	MimeType   string
	Size       int64
	ModifiedAt time.Time
}

// fileResponse mirrors the Drive v3 file resource JSON exactly.
// Unexported — callers use File via toFile() normalization.
// Drive returns size as a quoted decimal string, and omits it entirely
// for native document types.
type fileResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size"`
	ModifiedTime string `json:"modifiedTime"`
}

type fileListResponse struct {
	Files         []fileResponse `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

// toFile normalizes a Drive API file resource into our File type.
func (f *fileResponse) toFile(logger *slog.Logger) File {
	out := File{
		ID:       f.ID,
		Name:     f.Name,
		MimeType: f.MimeType,
	}

	if f.Size != "" {
		size, err := strconv.ParseInt(f.Size, 10, 64)
		if err != nil {
			logger.Warn("unparseable file size",
				slog.String("file_id", f.ID),
				slog.String("size", f.Size),
			)
		} else {
			out.Size = size
		}
	}

	if f.ModifiedTime != "" {
		ts, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			logger.Warn("unparseable modified time",
				slog.String("file_id", f.ID),
				slog.String("modified_time", f.ModifiedTime),
			)
		} else {
			out.ModifiedAt = ts
		}
	}

	return out
}

// escapeQueryValue escapes a string literal for interpolation into a Drive
// search query. Backslashes and single quotes are the only characters the
// query grammar treats specially inside a quoted literal.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}

// FindFolder resolves a folder name to its Drive file ID.
// Only non-trashed folders with an exact name match are considered; if
// duplicates exist, the first entry in provider order wins (best-effort,
// not deterministic). Returns ErrFolderNotFound when no folder matches —
// callers treat that as "nothing to sync this run", not as a failure.
func (c *Client) FindFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQueryValue(name), MimeFolder)

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id, name)")
	params.Set("pageSize", "1")

	resp, err := c.Do(ctx, http.MethodGet, "/files?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("drive: searching for folder %q: %w", name, err)
	}
	defer resp.Body.Close()

	var list fileListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("drive: decoding folder search response: %w", err)
	}

	if len(list.Files) == 0 {
		c.logger.Info("folder not found", slog.String("name", name))

		return "", ErrFolderNotFound
	}

	c.logger.Debug("resolved folder",
		slog.String("name", name),
		slog.String("folder_id", list.Files[0].ID),
	)

	return list.Files[0].ID, nil
}

// ListFolder enumerates the files directly under folderID, newest first.
// Sub-folders and trashed items are filtered server-side. pageSize bounds
// each page request; pagination follows nextPageToken until the listing is
// exhausted, so folders larger than one page are never truncated.
func (c *Client) ListFolder(ctx context.Context, folderID string, pageSize int) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'",
		escapeQueryValue(folderID), MimeFolder)

	var (
		files     []File
		pageToken string
	)

	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("orderBy", "modifiedTime desc")
		params.Set("pageSize", strconv.Itoa(pageSize))
		params.Set("fields", "nextPageToken, files(id, name, mimeType, size, modifiedTime)")

		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		resp, err := c.Do(ctx, http.MethodGet, "/files?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("drive: listing folder %s: %w", folderID, err)
		}

		var list fileListResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("drive: decoding file list response: %w", decodeErr)
		}

		for i := range list.Files {
			files = append(files, list.Files[i].toFile(c.logger))
		}

		if list.NextPageToken == "" {
			break
		}

		pageToken = list.NextPageToken
	}

	c.logger.Debug("listed folder",
		slog.String("folder_id", folderID),
		slog.Int("files", len(files)),
	)

	return files, nil
}
