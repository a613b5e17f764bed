package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docship/docship/internal/graph"
)

// ErrUploadAborted indicates a folder-structure failure that was not a
// name conflict. Unlike per-file failures, folder failures are
// session-fatal: every file below the folder depends on it existing.
var ErrUploadAborted = errors.New("mirror: session aborted by folder-structure failure")

// FolderCreationError is a subtree-scoped failure: a 409 conflict whose
// existing folder could not be resolved to an id. The subtree is abandoned
// and the session continues.
type FolderCreationError struct {
	Path string
	Err  error
}

func (e *FolderCreationError) Error() string {
	return fmt.Sprintf("mirror: creating folder %q: %v", e.Path, e.Err)
}

func (e *FolderCreationError) Unwrap() error {
	return e.Err
}

// FolderMap maps relative directory paths to remote folder ids. It grows
// monotonically during a session and is the single source of truth for
// "does this remote folder already exist in this session". The empty key
// is the session's root folder.
type FolderMap map[string]string

// Synchronizer ensures local directories exist remotely, create-or-reuse.
type Synchronizer struct {
	client *graph.Client
	logger *slog.Logger
}

// NewSynchronizer creates a folder Synchronizer.
func NewSynchronizer(client *graph.Client, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{client: client, logger: logger}
}

// EnsureFolders walks the directory sequence (parents before children, as
// produced by ScanTree) and creates or reuses each remote folder, memoizing
// every intermediate id so shared prefixes are created at most once per
// session. A 409 on creation resolves to the existing folder's id; any
// other creation failure aborts the whole session with ErrUploadAborted.
func (s *Synchronizer) EnsureFolders(
	ctx context.Context, driveID, rootFolderID string, dirs []string, report *Report,
) (FolderMap, error) {
	folders := FolderMap{"": rootFolderID}
	abandoned := make(map[string]bool)

	for _, dir := range dirs {
		if underAbandoned(abandoned, dir) {
			continue
		}

		if err := s.ensurePath(ctx, driveID, dir, folders, abandoned, report); err != nil {
			return nil, err
		}
	}

	s.logger.Info("remote folder structure ready",
		slog.Int("folders", len(folders)-1),
		slog.Int("abandoned_subtrees", len(abandoned)),
	)

	return folders, nil
}

// ensurePath creates every missing segment of dir, walking parent to child.
func (s *Synchronizer) ensurePath(
	ctx context.Context, driveID, dir string,
	folders FolderMap, abandoned map[string]bool, report *Report,
) error {
	segments := strings.Split(dir, "/")
	prefix := ""

	for _, seg := range segments {
		parent := prefix
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "/" + seg
		}

		if _, ok := folders[prefix]; ok {
			continue
		}

		id, err := s.createOrReuse(ctx, driveID, folders[parent], seg)
		if err != nil {
			var fce *FolderCreationError
			if errors.As(err, &fce) {
				fce.Path = prefix
				s.logger.Warn("abandoning subtree after folder creation failure",
					slog.String("path", prefix),
					slog.String("error", fce.Err.Error()),
				)
				report.AddFolderFailure()
				abandoned[prefix] = true

				return nil
			}

			return fmt.Errorf("%w: creating %q: %v", ErrUploadAborted, prefix, err)
		}

		folders[prefix] = id
	}

	return nil
}

// createOrReuse creates the folder, resolving a 409 conflict to the
// existing folder's id via a name-filtered child lookup. Later file
// uploads need the concrete id, so a bare 409 is never treated as success.
func (s *Synchronizer) createOrReuse(ctx context.Context, driveID, parentID, name string) (string, error) {
	item, err := s.client.CreateFolder(ctx, driveID, parentID, name)
	if err == nil {
		return item.ID, nil
	}

	if !errors.Is(err, graph.ErrConflict) {
		return "", err
	}

	existing, lookupErr := s.client.ChildByName(ctx, driveID, parentID, name)
	if lookupErr != nil {
		return "", &FolderCreationError{Err: fmt.Errorf("conflict lookup failed: %w", lookupErr)}
	}

	if !existing.IsFolder {
		return "", &FolderCreationError{Err: fmt.Errorf("existing item %q is a file", name)}
	}

	s.logger.Debug("reusing existing folder",
		slog.String("name", name),
		slog.String("id", existing.ID),
	)

	return existing.ID, nil
}

// underAbandoned reports whether dir is inside an abandoned subtree.
func underAbandoned(abandoned map[string]bool, dir string) bool {
	for prefix := range abandoned {
		if dir == prefix || strings.HasPrefix(dir, prefix+"/") {
			return true
		}
	}

	return false
}
