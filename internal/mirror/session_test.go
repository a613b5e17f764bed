package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docship/docship/internal/graph"
)

// fakeGraph is the full surface a mirror session touches: site lookup,
// default drive, path resolution, folder creation and content upload.
type fakeGraph struct {
	mu            sync.Mutex
	foldersMade   []string
	filesUploaded []string
}

func (g *fakeGraph) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path

		switch {
		case strings.HasPrefix(path, "/sites/contoso.sharepoint.com:"):
			fmt.Fprint(w, `{"id": "site-1", "displayName": "Demo"}`)

		case path == "/sites/site-1/drive":
			fmt.Fprint(w, `{"id": "drive-1", "name": "Documents"}`)

		case strings.HasSuffix(path, "/root:/docs:"):
			fmt.Fprint(w, `{"id": "dest-id", "name": "docs", "folder": {"childCount": 0}}`)

		case r.Method == http.MethodPost && strings.HasSuffix(path, "/children"):
			var body struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			g.mu.Lock()
			g.foldersMade = append(g.foldersMade, body.Name)
			g.mu.Unlock()

			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id": "folder-%s", "name": %q, "folder": {"childCount": 0}}`, body.Name, body.Name)

		case r.Method == http.MethodPut && strings.HasSuffix(path, ":/content"):
			name := strings.TrimSuffix(path, ":/content")
			name = name[strings.LastIndex(name, ":/")+2:]

			g.mu.Lock()
			g.filesUploaded = append(g.filesUploaded, name)
			g.mu.Unlock()

			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id": "item-%s", "name": %q, "size": 1}`, name, name)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestRun_MirrorsTreeEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "aa")
	writeFile(t, root, "sub/b.txt", "bbb")

	g := &fakeGraph{}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	client := graph.NewClient(srv.URL, srv.Client(), graph.StaticToken("tok"), discardLogger())

	report, err := Run(context.Background(), client, SessionConfig{
		Source:        root,
		Host:          "contoso.sharepoint.com",
		SitePath:      "/teams/demo",
		FolderPath:    "docs",
		ThrottleDelay: time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Uploaded())
	assert.Zero(t, report.Failed())
	assert.Zero(t, report.FailedFolderCreations())

	assert.Equal(t, []string{"sub"}, g.foldersMade, "the one directory is created exactly once")
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, g.filesUploaded)
}

func TestRun_MissingSourceIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no network call expected before the local scan succeeds")
	}))
	defer srv.Close()

	client := graph.NewClient(srv.URL, srv.Client(), graph.StaticToken("tok"), discardLogger())

	_, err := Run(context.Background(), client, SessionConfig{
		Source:   t.TempDir() + "/missing",
		Host:     "contoso.sharepoint.com",
		SitePath: "/teams/demo",
	}, discardLogger())
	require.Error(t, err)
}
