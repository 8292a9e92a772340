package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Download streams the raw content of a binary file to the given writer.
// Returns the number of bytes written. Only the HTTP request/response
// cycle is retried; streaming happens after Do returns, so partial-stream
// failures are handled by the caller.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	c.logger.Info("downloading file", slog.String("file_id", fileID))

	path := "/files/" + url.PathEscape(fileID) + "?alt=media"

	resp, err := c.Do(ctx, http.MethodGet, path)
	if err != nil {
		return 0, fmt.Errorf("drive: downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		c.logger.Error("streaming download content failed",
			slog.String("file_id", fileID),
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("drive: streaming download content: %w", copyErr)
	}

	c.logger.Debug("download complete",
		slog.String("file_id", fileID),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// Export streams a format-converted copy of a native document to the given
// writer. mimeType is the export content type from the conversion table.
// A 400 or 403 from the export endpoint is reported as ErrExportRejected
// so callers can distinguish "format refused" from transport failures and
// try a documented fallback format.
func (c *Client) Export(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error) {
	c.logger.Info("exporting file",
		slog.String("file_id", fileID),
		slog.String("mime_type", mimeType),
	)

	params := url.Values{}
	params.Set("mimeType", mimeType)
	path := "/files/" + url.PathEscape(fileID) + "/export?" + params.Encode()

	resp, err := c.Do(ctx, http.MethodGet, path)
	if err != nil {
		if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrForbidden) {
			return 0, fmt.Errorf("drive: exporting file %s as %s: %w (%w)",
				fileID, mimeType, ErrExportRejected, err)
		}

		return 0, fmt.Errorf("drive: exporting file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		c.logger.Error("streaming export content failed",
			slog.String("file_id", fileID),
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("drive: streaming export content: %w", copyErr)
	}

	c.logger.Debug("export complete",
		slog.String("file_id", fileID),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}
