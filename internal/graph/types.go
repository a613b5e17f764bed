package graph

import "strings"

// Item represents a drive item (file or folder). Fields are normalized
// from the Graph API response — callers never see raw API data.
type Item struct {
	ID       string
	Name     string
	DriveID  string // normalized: lowercase (Graph API casing is inconsistent)
	ParentID string
	Size     int64
	IsFolder bool
	WebURL   string
}

// Drive represents a document library drive within a site.
type Drive struct {
	ID        string
	Name      string
	DriveType string
	WebURL    string
}

// Site represents a SharePoint site resolved by hostname and server-relative path.
type Site struct {
	ID     string
	Name   string
	WebURL string
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported — callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Size            int64        `json:"size"`
	WebURL          string       `json:"webUrl"`
	ParentReference *parentRef   `json:"parentReference"`
	Folder          *folderFacet `json:"folder"`
}

type parentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

func (d *driveItemResponse) toItem() Item {
	item := Item{
		ID:       d.ID,
		Name:     d.Name,
		Size:     d.Size,
		WebURL:   d.WebURL,
		IsFolder: d.Folder != nil,
	}

	// Graph API returns inconsistent drive ID casing across endpoints.
	if d.ParentReference != nil {
		item.DriveID = strings.ToLower(d.ParentReference.DriveID)
		item.ParentID = d.ParentReference.ID
	}

	return item
}

type itemListResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// driveResponse mirrors the Graph API drive JSON.
type driveResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
	WebURL    string `json:"webUrl"`
}

func (d *driveResponse) toDrive() Drive {
	return Drive{
		ID:        strings.ToLower(d.ID),
		Name:      d.Name,
		DriveType: d.DriveType,
		WebURL:    d.WebURL,
	}
}

type driveListResponse struct {
	Value []driveResponse `json:"value"`
}

// siteResponse mirrors the Graph API site JSON.
type siteResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

func (s *siteResponse) toSite() Site {
	return Site{
		ID:     s.ID,
		Name:   s.DisplayName,
		WebURL: s.WebURL,
	}
}
