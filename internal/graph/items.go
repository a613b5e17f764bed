package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// listChildrenPageSize is the $top value for child listings.
// 200 is the maximum allowed by the Graph API for drive item collections.
const listChildrenPageSize = 200

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into Graph API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           folderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

// RootFolder returns the root folder item of a drive.
func (c *Client) RootFolder(ctx context.Context, driveID string) (*Item, error) {
	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/root", driveID))
}

// ItemByPath retrieves a drive item by its path relative to the drive root.
// The path must NOT have a leading slash (caller strips it).
func (c *Client) ItemByPath(ctx context.Context, driveID, remotePath string) (*Item, error) {
	c.logger.Debug("getting item by path",
		slog.String("drive_id", driveID),
		slog.String("path", remotePath),
	)

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/root:/%s:", driveID, encodePathSegments(remotePath)))
}

// ChildByName retrieves the uniquely-named child of a folder. The Graph
// API guarantees name uniqueness within a folder, so the name-filtered
// listing yields at most one item; zero matches is ErrNotFound.
func (c *Client) ChildByName(ctx context.Context, driveID, parentID, name string) (*Item, error) {
	// url.Values keeps names with &, #, or quotes intact in the query;
	// quotes are doubled per OData string-literal rules.
	query := url.Values{
		"$filter": {fmt.Sprintf("name eq '%s'", strings.ReplaceAll(name, "'", "''"))},
	}

	path := fmt.Sprintf("/drives/%s/items/%s/children?%s", driveID, parentID, query.Encode())

	items, err := c.collectItems(ctx, path)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if strings.EqualFold(items[i].Name, name) {
			return &items[i], nil
		}
	}

	return nil, &APIError{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("no child named %q under item %s", name, parentID),
		Err:        ErrNotFound,
	}
}

// ListChildren returns all children of a folder, handling pagination automatically.
func (c *Client) ListChildren(ctx context.Context, driveID, parentID string) ([]Item, error) {
	return c.collectItems(ctx,
		fmt.Sprintf("/drives/%s/items/%s/children?$top=%d", driveID, parentID, listChildrenPageSize))
}

// CreateFolder creates a new folder under the given parent.
// Uses conflictBehavior "fail" — returns ErrConflict (409) on name collision,
// which the folder synchronizer resolves to the existing folder's id.
func (c *Client) CreateFolder(ctx context.Context, driveID, parentID, name string) (*Item, error) {
	c.logger.Info("creating folder",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           folderFacet{},
		ConflictBehavior: "fail",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling create folder request: %w", err)
	}

	path := fmt.Sprintf("/drives/%s/items/%s/children", driveID, parentID)

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding create folder response: %w", err)
	}

	item := dir.toItem()

	return &item, nil
}

// fetchItem fetches a single drive item from the given API path and decodes it.
func (c *Client) fetchItem(ctx context.Context, apiPath string) (*Item, error) {
	var dir driveItemResponse
	if err := c.getJSON(ctx, apiPath, &dir); err != nil {
		return nil, err
	}

	item := dir.toItem()

	return &item, nil
}

// collectItems paginates through an item collection starting at apiPath,
// following @odata.nextLink until exhausted.
func (c *Client) collectItems(ctx context.Context, apiPath string) ([]Item, error) {
	var items []Item

	for apiPath != "" {
		var page itemListResponse
		if err := c.getJSON(ctx, apiPath, &page); err != nil {
			return nil, err
		}

		for i := range page.Value {
			items = append(items, page.Value[i].toItem())
		}

		if page.NextLink == "" {
			break
		}

		next, err := c.stripBaseURL(page.NextLink)
		if err != nil {
			return nil, err
		}

		apiPath = next
	}

	return items, nil
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for use with Do().
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}
