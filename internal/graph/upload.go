package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// PutContent uploads a file's bytes in a single PUT request, addressed by
// name under the resolved parent folder. The content is sent with
// application/octet-stream content type. Returns the created item.
func (c *Client) PutContent(
	ctx context.Context, driveID, parentID, name string, r io.Reader, size int64,
) (*Item, error) {
	c.logger.Info("uploading file",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/content", driveID, parentID, url.PathEscape(name))

	resp, err := c.Do(ctx, http.MethodPut, path, r, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&dir); decErr != nil {
		return nil, fmt.Errorf("graph: decoding upload response: %w", decErr)
	}

	item := dir.toItem()

	return &item, nil
}
