// Package mirror uploads a local directory tree into a remote drive:
// it scans the tree once, ensures every directory exists remotely, then
// streams files sequentially under a shared throttle budget, accumulating
// a success/failure report for the caller.
package mirror

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"
)

// FileEntry is one uploadable file in the local tree.
type FileEntry struct {
	RelPath   string // slash-separated, NFC-normalized, relative to the tree root
	LocalPath string // absolute path on the local filesystem
	Size      int64
	Mtime     time.Time
}

// Tree is the read-only enumeration of a local source directory,
// built once per session.
type Tree struct {
	Root  string
	Dirs  []string // relative paths, pre-order: parents always before children
	Files []FileEntry
}

// ScanTree walks root and enumerates directories and files. Symlinks are
// skipped — following them could escape the tree or loop. Relative paths
// are NFC-normalized so macOS NFD filenames address the same remote items
// as their NFC equivalents.
func ScanTree(root string) (*Tree, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("mirror: resolving source root: %w", err)
	}

	tree := &Tree{Root: absRoot}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("mirror: walking %s: %w", path, walkErr)
		}

		if path == absRoot {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return fmt.Errorf("mirror: relativizing %s: %w", path, relErr)
		}

		rel = norm.NFC.String(filepath.ToSlash(rel))

		if d.IsDir() {
			tree.Dirs = append(tree.Dirs, rel)

			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("mirror: stat %s: %w", path, infoErr)
		}

		tree.Files = append(tree.Files, FileEntry{
			RelPath:   rel,
			LocalPath: path,
			Size:      info.Size(),
			Mtime:     info.ModTime(),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
