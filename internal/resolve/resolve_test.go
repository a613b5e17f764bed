package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docship/docship/internal/graph"
)

// fakeSite is a minimal Graph site with one default drive. Folder layout
// and drive lists are configured per test.
type fakeSite struct {
	// children maps "driveID/parentID" -> name -> itemID for segment walks.
	children map[string]map[string]string
	// byPath maps a literal root-relative path to an itemID.
	byPath map[string]string
	// searchResults returned for any site search, as (name, id, isFolder).
	searchResults []searchResult
	// extraDrives listed beside the default drive.
	extraDrives []string // names; ids are synthesized
}

type searchResult struct {
	name     string
	id       string
	isFolder bool
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasPrefix(path, "/sites/contoso.sharepoint.com:"):
			fmt.Fprint(w, `{"id": "site-1", "displayName": "Demo"}`)

		case path == "/sites/site-1/drive":
			fmt.Fprint(w, `{"id": "drive-1", "name": "Documents"}`)

		case path == "/sites/site-1/drives":
			fmt.Fprint(w, f.drivesJSON())

		case strings.HasPrefix(path, "/sites/site-1/drive/root/search("):
			fmt.Fprint(w, f.searchJSON())

		case strings.HasSuffix(path, "/root"):
			fmt.Fprint(w, `{"id": "root-id", "name": "root", "folder": {"childCount": 0}}`)

		case strings.Contains(path, "/root:/"):
			rel := strings.TrimSuffix(path[strings.Index(path, "/root:/")+len("/root:/"):], ":")
			if id, ok := f.byPath[rel]; ok {
				fmt.Fprintf(w, `{"id": %q, "name": "x", "folder": {"childCount": 0}}`, id)

				return
			}

			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":"itemNotFound"}}`)

		case strings.Contains(path, "/children"):
			parts := strings.Split(path, "/")
			key := parts[2] + "/" + parts[len(parts)-2]
			name := filterName(r.URL.Query().Get("$filter"))

			if id, ok := f.children[key][name]; ok {
				fmt.Fprintf(w, `{"value": [{"id": %q, "name": %q, "folder": {"childCount": 0}}]}`, id, name)

				return
			}

			fmt.Fprint(w, `{"value": []}`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// filterName extracts x from "name eq 'x'".
func filterName(filter string) string {
	first := strings.Index(filter, "'")
	last := strings.LastIndex(filter, "'")

	if first < 0 || last <= first {
		return ""
	}

	return strings.ReplaceAll(filter[first+1:last], "''", "'")
}

func (f *fakeSite) drivesJSON() string {
	entries := []string{`{"id": "drive-1", "name": "Documents"}`}
	for i, name := range f.extraDrives {
		entries = append(entries, fmt.Sprintf(`{"id": "extra-%d", "name": %q}`, i, name))
	}

	return `{"value": [` + strings.Join(entries, ",") + `]}`
}

func (f *fakeSite) searchJSON() string {
	var entries []string

	for _, sr := range f.searchResults {
		facet := ""
		if sr.isFolder {
			facet = `, "folder": {"childCount": 0}`
		}

		entries = append(entries, fmt.Sprintf(
			`{"id": %q, "name": %q, "parentReference": {"id": "p", "driveId": "drive-1"}%s}`,
			sr.id, sr.name, facet))
	}

	return `{"value": [` + strings.Join(entries, ",") + `]}`
}

func newTestResolver(t *testing.T, site *fakeSite) (*Resolver, func()) {
	t.Helper()

	srv := httptest.NewServer(site.handler(t))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := graph.NewClient(srv.URL, srv.Client(), graph.StaticToken("tok"), logger)

	return New(client, logger), srv.Close
}

func TestResolve_DirectPath(t *testing.T) {
	site := &fakeSite{byPath: map[string]string{"docs/guides": "folder-7"}}
	r, done := newTestResolver(t, site)
	defer done()

	ref, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "docs/guides")
	require.NoError(t, err)
	assert.Equal(t, "drive-1", ref.DriveID)
	assert.Equal(t, "folder-7", ref.FolderID)
}

func TestResolve_Idempotent(t *testing.T) {
	site := &fakeSite{byPath: map[string]string{"docs": "folder-7"}}
	r, done := newTestResolver(t, site)
	defer done()

	first, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "docs")
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "docs")
	require.NoError(t, err)

	assert.Equal(t, first.DriveID, second.DriveID)
	assert.Equal(t, first.FolderID, second.FolderID)
}

func TestResolve_PercentEncodedPath(t *testing.T) {
	site := &fakeSite{byPath: map[string]string{"release notes": "folder-8"}}
	r, done := newTestResolver(t, site)
	defer done()

	ref, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "release%20notes")
	require.NoError(t, err)
	assert.Equal(t, "folder-8", ref.FolderID)
}

func TestResolve_SegmentWalkToleratesLibraryPrefix(t *testing.T) {
	// "Documents" is the library display name, not part of the literal root
	// path: the direct strategy misses and the walk drops the front segment.
	site := &fakeSite{
		children: map[string]map[string]string{
			"drive-1/root-id":  {"guides": "folder-9"},
			"drive-1/folder-9": {"v2": "folder-10"},
		},
	}
	r, done := newTestResolver(t, site)
	defer done()

	ref, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "Documents/guides/v2")
	require.NoError(t, err)
	assert.Equal(t, "folder-10", ref.FolderID)
	assert.Equal(t, "v2", ref.Matched)
}

func TestResolve_SearchFallbackUniqueMatch(t *testing.T) {
	site := &fakeSite{
		searchResults: []searchResult{
			{name: "guides", id: "folder-11", isFolder: true},
			{name: "guides.txt", id: "file-1", isFolder: false},
		},
	}
	r, done := newTestResolver(t, site)
	defer done()

	ref, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "missing/guides")
	require.NoError(t, err)
	assert.Equal(t, "folder-11", ref.FolderID, "non-folder search hits are filtered out")
}

func TestResolve_SearchAmbiguousIsError(t *testing.T) {
	site := &fakeSite{
		searchResults: []searchResult{
			{name: "guides", id: "folder-11", isFolder: true},
			{name: "guides", id: "folder-12", isFolder: true},
		},
	}
	r, done := newTestResolver(t, site)
	defer done()

	_, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "missing/guides")
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Reason, "exactly one")
}

func TestResolve_MultipleDrivesByNameIsError(t *testing.T) {
	site := &fakeSite{extraDrives: []string{"Demo", "Demo"}}
	r, done := newTestResolver(t, site)
	defer done()

	_, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/sites/demo", "Demo/sub")
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Reason, "multiple drives")
}

func TestResolve_DriveNameStrategy(t *testing.T) {
	site := &fakeSite{
		extraDrives: []string{"Archive"},
		children: map[string]map[string]string{
			"extra-0/root-id": {"reports": "folder-20"},
		},
	}
	r, done := newTestResolver(t, site)
	defer done()

	ref, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/sites/demo", "Archive/reports")
	require.NoError(t, err)
	assert.Equal(t, "extra-0", ref.DriveID)
	assert.Equal(t, "folder-20", ref.FolderID)
}

func TestResolve_EmptyFolderPath(t *testing.T) {
	r, done := newTestResolver(t, &fakeSite{})
	defer done()

	_, err := r.Resolve(context.Background(), "contoso.sharepoint.com", "/teams/demo", "/")
	require.Error(t, err)

	var resErr *ResolutionError
	assert.ErrorAs(t, err, &resErr)
}
