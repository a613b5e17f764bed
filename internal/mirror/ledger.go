package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Ledger records completed uploads in a local SQLite database so re-runs
// skip files whose size and mtime have not changed. It is per-destination
// and entirely optional — without a ledger every file uploads every run.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLedger opens (or creates) the ledger database at path and applies
// pending schema migrations. The connection is capped at one writer, the
// sole-writer pattern SQLite rewards.
func OpenLedger(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mirror: opening ledger %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &Ledger{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Unchanged reports whether relPath was previously uploaded with the same
// size and mtime. Lookup errors count as changed — uploading again is
// always safe, skipping wrongly is not.
func (l *Ledger) Unchanged(ctx context.Context, relPath string, size, mtimeUnix int64) bool {
	var gotSize, gotMtime int64

	err := l.db.QueryRowContext(ctx,
		`SELECT size, mtime_unix FROM uploads WHERE rel_path = ?`, relPath,
	).Scan(&gotSize, &gotMtime)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.logger.Warn("ledger lookup failed",
				slog.String("path", relPath),
				slog.String("error", err.Error()),
			)
		}

		return false
	}

	return gotSize == size && gotMtime == mtimeUnix
}

// Record upserts the ledger row for a completed upload.
func (l *Ledger) Record(ctx context.Context, relPath string, size, mtimeUnix int64, itemID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO uploads (rel_path, size, mtime_unix, item_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(rel_path) DO UPDATE SET
		   size = excluded.size,
		   mtime_unix = excluded.mtime_unix,
		   item_id = excluded.item_id,
		   uploaded_at = datetime('now')`,
		relPath, size, mtimeUnix, itemID,
	)
	if err != nil {
		return fmt.Errorf("mirror: recording upload of %s: %w", relPath, err)
	}

	return nil
}
