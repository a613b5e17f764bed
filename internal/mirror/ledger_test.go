package mirror

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := OpenLedger(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l
}

func TestLedger_RecordThenUnchanged(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	assert.False(t, l.Unchanged(ctx, "a.txt", 10, 100), "unknown files always upload")

	require.NoError(t, l.Record(ctx, "a.txt", 10, 100, "item-1"))

	assert.True(t, l.Unchanged(ctx, "a.txt", 10, 100))
	assert.False(t, l.Unchanged(ctx, "a.txt", 11, 100), "size change invalidates")
	assert.False(t, l.Unchanged(ctx, "a.txt", 10, 101), "mtime change invalidates")
}

func TestLedger_RecordUpserts(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "a.txt", 10, 100, "item-1"))
	require.NoError(t, l.Record(ctx, "a.txt", 20, 200, "item-1"))

	assert.False(t, l.Unchanged(ctx, "a.txt", 10, 100))
	assert.True(t, l.Unchanged(ctx, "a.txt", 20, 200))
}

func TestLedger_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	first, err := OpenLedger(ctx, path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Record(ctx, "a.txt", 10, 100, "item-1"))
	require.NoError(t, first.Close())

	second, err := OpenLedger(ctx, path, discardLogger())
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.Unchanged(ctx, "a.txt", 10, 100))
}

func TestUploadAll_LedgerSkipsUnchanged(t *testing.T) {
	srv := &uploadServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	l := openTestLedger(t)
	u, sleeps := newTestUploader(t, ts, 50*time.Millisecond, WithLedger(l))

	files := localFiles(t, "a.txt", "b.txt")
	folders := FolderMap{"": "root-id"}

	first := &Report{}
	require.NoError(t, u.UploadAll(context.Background(), "d", files, folders, first))
	assert.Equal(t, 2, first.Uploaded())

	*sleeps = nil

	second := &Report{}
	require.NoError(t, u.UploadAll(context.Background(), "d", files, folders, second))

	assert.Zero(t, second.Uploaded())
	assert.Equal(t, 2, second.Skipped())
	assert.Len(t, srv.requests(), 2, "skipped files make no network calls")
	assert.Empty(t, *sleeps, "skipped files spend no throttle delay")
}
