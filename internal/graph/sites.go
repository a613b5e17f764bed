package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// GetSite resolves a site by hostname and server-relative path,
// e.g. ("contoso.sharepoint.com", "/sites/docs").
func (c *Client) GetSite(ctx context.Context, host, sitePath string) (*Site, error) {
	c.logger.Info("resolving site",
		slog.String("host", host),
		slog.String("site_path", sitePath),
	)

	sitePath = "/" + strings.Trim(sitePath, "/")

	var sr siteResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/sites/%s:%s", host, encodePathSegments(sitePath)), &sr); err != nil {
		return nil, err
	}

	site := sr.toSite()

	return &site, nil
}

// DefaultDrive returns the site's default document library drive.
func (c *Client) DefaultDrive(ctx context.Context, siteID string) (*Drive, error) {
	var dr driveResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/sites/%s/drive", siteID), &dr); err != nil {
		return nil, err
	}

	drive := dr.toDrive()

	return &drive, nil
}

// ListDrives returns all document library drives of a site.
func (c *Client) ListDrives(ctx context.Context, siteID string) ([]Drive, error) {
	var dlr driveListResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/sites/%s/drives", siteID), &dlr); err != nil {
		return nil, err
	}

	drives := make([]Drive, 0, len(dlr.Value))
	for i := range dlr.Value {
		drives = append(drives, dlr.Value[i].toDrive())
	}

	c.logger.Debug("listed drives",
		slog.String("site_id", siteID),
		slog.Int("count", len(drives)),
	)

	return drives, nil
}

// DrivesByName returns every drive of the site whose display name matches
// name (case-insensitive). Callers enforce their own uniqueness policy —
// a multi-match is reported, never silently narrowed to the first hit.
func (c *Client) DrivesByName(ctx context.Context, siteID, name string) ([]Drive, error) {
	drives, err := c.ListDrives(ctx, siteID)
	if err != nil {
		return nil, err
	}

	var matches []Drive

	for _, d := range drives {
		if strings.EqualFold(d.Name, name) {
			matches = append(matches, d)
		}
	}

	return matches, nil
}

// SearchSite searches the site's default drive for items matching query.
func (c *Client) SearchSite(ctx context.Context, siteID, query string) ([]Item, error) {
	c.logger.Info("searching site",
		slog.String("site_id", siteID),
		slog.String("query", query),
	)

	// Embedded quotes are doubled per OData string-literal rules.
	path := fmt.Sprintf("/sites/%s/drive/root/search(q='%s')",
		siteID, url.PathEscape(strings.ReplaceAll(query, "'", "''")))

	return c.collectItems(ctx, path)
}
