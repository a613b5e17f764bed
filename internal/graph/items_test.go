package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemByPath_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/root:/docs/guides:", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{
			"id": "folder-1",
			"name": "guides",
			"parentReference": {"id": "root", "driveId": "DRIVE-1"},
			"folder": {"childCount": 3}
		}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	item, err := client.ItemByPath(context.Background(), "drive-1", "docs/guides")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", item.ID)
	assert.True(t, item.IsFolder)
	assert.Equal(t, "drive-1", item.DriveID, "drive IDs are normalized to lowercase")
}

func TestItemByPath_EncodesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.EscapedPath(), "a%20b")

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id": "x", "name": "c"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ItemByPath(context.Background(), "d", "a b/c")
	require.NoError(t, err)
}

func TestChildByName_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value": [
			{"id": "child-1", "name": "Sub", "folder": {"childCount": 0}}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	item, err := client.ChildByName(context.Background(), "d", "parent-1", "sub")
	require.NoError(t, err)
	assert.Equal(t, "child-1", item.ID, "name match is case-insensitive")
}

func TestChildByName_FilterSurvivesSpecialCharacters(t *testing.T) {
	// & and # must reach the server inside the filter value, not split the
	// query or truncate it to a fragment.
	names := []string{"a&b", "notes#1", "O'Brien docs"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				want := fmt.Sprintf("name eq '%s'", strings.ReplaceAll(name, "'", "''"))
				assert.Equal(t, want, r.URL.Query().Get("$filter"))

				w.WriteHeader(http.StatusOK)
				fmt.Fprintf(w, `{"value": [{"id": "child-1", "name": %q, "folder": {"childCount": 0}}]}`, name)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)

			item, err := client.ChildByName(context.Background(), "d", "parent-1", name)
			require.NoError(t, err)
			assert.Equal(t, "child-1", item.ID)
		})
	}
}

func TestSearchSite_DoublesEmbeddedQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "search(q='O''Brien')")

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value": []}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.SearchSite(context.Background(), "site-1", "O'Brien")
	require.NoError(t, err)
}

func TestChildByName_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value": []}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ChildByName(context.Background(), "d", "parent-1", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateFolder_SendsConflictBehaviorFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/drives/d/items/parent-1/children", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sub", body["name"])
		assert.Equal(t, "fail", body["@microsoft.graph.conflictBehavior"])
		assert.Contains(t, body, "folder")

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "new-folder", "name": "sub", "folder": {"childCount": 0}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	item, err := client.CreateFolder(context.Background(), "d", "parent-1", "sub")
	require.NoError(t, err)
	assert.Equal(t, "new-folder", item.ID)
}

func TestCreateFolder_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":{"code":"nameAlreadyExists"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CreateFolder(context.Background(), "d", "parent-1", "sub")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListChildren_Paginates(t *testing.T) {
	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)

		if strings.Contains(r.URL.RawQuery, "skiptoken") {
			fmt.Fprint(w, `{"value": [{"id": "b", "name": "b.txt"}]}`)

			return
		}

		fmt.Fprintf(w, `{"value": [{"id": "a", "name": "a.txt"}],
			"@odata.nextLink": %q}`, srv.URL+"/drives/d/items/p/children?$skiptoken=x")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	items, err := client.ListChildren(context.Background(), "d", "p")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestPutContent_UploadsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/drives/d/items/parent-1:/a.txt:/content", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body := make([]byte, 5)
		n, _ := r.Body.Read(body)
		assert.Equal(t, "hello", string(body[:n]))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "file-1", "name": "a.txt", "size": 5}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	item, err := client.PutContent(context.Background(), "d", "parent-1", "a.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "file-1", item.ID)
	assert.Equal(t, int64(5), item.Size)
}

func TestGetSite_And_Drives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)

		switch {
		case strings.HasPrefix(r.URL.Path, "/sites/contoso.sharepoint.com:"):
			fmt.Fprint(w, `{"id": "site-1", "displayName": "Docs"}`)
		case r.URL.Path == "/sites/site-1/drives":
			fmt.Fprint(w, `{"value": [
				{"id": "D1", "name": "Documents"},
				{"id": "D2", "name": "Archive"},
				{"id": "D3", "name": "documents"}
			]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	site, err := client.GetSite(context.Background(), "contoso.sharepoint.com", "/sites/docs")
	require.NoError(t, err)
	assert.Equal(t, "site-1", site.ID)

	matches, err := client.DrivesByName(context.Background(), "site-1", "Documents")
	require.NoError(t, err)
	require.Len(t, matches, 2, "display-name matching is case-insensitive and never narrows silently")
	assert.Equal(t, "d1", matches[0].ID)
}
