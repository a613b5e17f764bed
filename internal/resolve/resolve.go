// Package resolve maps a human-authored destination path to a concrete
// (drive id, folder id) pair. Destination paths are messy in practice —
// they may include the library's display name, percent-encoding, or a
// /sites/ prefixed drive name — so resolution runs an ordered chain of
// progressively more expensive strategies and short-circuits on the first
// unambiguous hit. Ambiguity is always an error, never a guess.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/docship/docship/internal/graph"
)

// Ref is the resolved destination: a drive and a folder within it.
type Ref struct {
	DriveID  string
	FolderID string
	Matched  string // path segment or name that produced the match
}

// ResolutionError reports that no strategy produced exactly one match.
type ResolutionError struct {
	Host       string
	SitePath   string
	FolderPath string
	Reason     string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve: %s (host=%s site=%s folder=%s)", e.Reason, e.Host, e.SitePath, e.FolderPath)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// errNoMatch signals a strategy found nothing and the chain should continue.
var errNoMatch = errors.New("resolve: no match")

// Resolver resolves destination paths against a site's drives.
type Resolver struct {
	client *graph.Client
	logger *slog.Logger
}

// New creates a Resolver using the given Graph client.
func New(client *graph.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{client: client, logger: logger}
}

// strategy attempts one resolution approach. Returning an error (including
// errNoMatch or an ambiguity) hands control to the next strategy in the chain.
type strategy struct {
	name string
	run  func(ctx context.Context) (*Ref, error)
}

// Resolve maps (host, sitePath, folderPath) to a unique drive folder.
// Strategies run in strict precedence order; the first unambiguous success
// wins. If every strategy fails, the last failure is wrapped in a
// ResolutionError so the remote error body is never swallowed.
func (r *Resolver) Resolve(ctx context.Context, host, sitePath, folderPath string) (*Ref, error) {
	if decoded, err := url.PathUnescape(folderPath); err == nil {
		folderPath = decoded
	}

	folderPath = strings.Trim(folderPath, "/")
	if folderPath == "" {
		return nil, &ResolutionError{Host: host, SitePath: sitePath, FolderPath: folderPath,
			Reason: "empty destination folder path"}
	}

	site, err := r.client.GetSite(ctx, host, sitePath)
	if err != nil {
		return nil, &ResolutionError{Host: host, SitePath: sitePath, FolderPath: folderPath,
			Reason: "site lookup failed: " + err.Error(), Err: err}
	}

	drive, err := r.client.DefaultDrive(ctx, site.ID)
	if err != nil {
		return nil, &ResolutionError{Host: host, SitePath: sitePath, FolderPath: folderPath,
			Reason: "default drive lookup failed: " + err.Error(), Err: err}
	}

	strategies := []strategy{
		{"direct-path", func(ctx context.Context) (*Ref, error) {
			return r.directPath(ctx, drive.ID, folderPath)
		}},
		{"segment-walk", func(ctx context.Context) (*Ref, error) {
			return r.segmentWalk(ctx, drive.ID, strings.Split(folderPath, "/"))
		}},
		{"name-search", func(ctx context.Context) (*Ref, error) {
			return r.nameSearch(ctx, site.ID, drive.ID, folderPath)
		}},
	}

	if strings.Contains(sitePath+"/"+folderPath, "/sites/") {
		strategies = append(strategies, strategy{"drive-name", func(ctx context.Context) (*Ref, error) {
			return r.driveByName(ctx, site.ID, folderPath)
		}})
	}

	var lastErr error

	for _, s := range strategies {
		ref, err := s.run(ctx)
		if err == nil {
			r.logger.Info("destination resolved",
				slog.String("strategy", s.name),
				slog.String("drive_id", ref.DriveID),
				slog.String("folder_id", ref.FolderID),
			)

			return ref, nil
		}

		r.logger.Debug("resolution strategy failed",
			slog.String("strategy", s.name),
			slog.String("error", err.Error()),
		)

		if !errors.Is(err, errNoMatch) {
			lastErr = err
		}
	}

	reason := "no strategy matched the destination path"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	return nil, &ResolutionError{Host: host, SitePath: sitePath, FolderPath: folderPath,
		Reason: reason, Err: lastErr}
}

// directPath treats folderPath literally as a path under the drive root.
func (r *Resolver) directPath(ctx context.Context, driveID, folderPath string) (*Ref, error) {
	item, err := r.client.ItemByPath(ctx, driveID, folderPath)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, errNoMatch
		}

		return nil, err
	}

	if !item.IsFolder {
		return nil, fmt.Errorf("resolve: %q is a file, not a folder", folderPath)
	}

	return &Ref{DriveID: driveID, FolderID: item.ID, Matched: folderPath}, nil
}

// segmentWalk resolves the path one child at a time from the drive root,
// failing fast on any missing segment. A missing first segment is dropped
// once: destination paths often carry the library's display name (such as
// "Documents") as a front component that is not part of the literal root path.
func (r *Resolver) segmentWalk(ctx context.Context, driveID string, segments []string) (*Ref, error) {
	root, err := r.client.RootFolder(ctx, driveID)
	if err != nil {
		return nil, err
	}

	current := root.ID
	matched := ""

	for i, seg := range segments {
		if seg == "" {
			continue
		}

		child, err := r.client.ChildByName(ctx, driveID, current, seg)
		if err != nil {
			if i == 0 && errors.Is(err, graph.ErrNotFound) && len(segments) > 1 {
				continue // tolerate a library display-name front component
			}

			if errors.Is(err, graph.ErrNotFound) {
				return nil, errNoMatch
			}

			return nil, err
		}

		current = child.ID
		matched = seg
	}

	if matched == "" {
		return nil, errNoMatch
	}

	return &Ref{DriveID: driveID, FolderID: current, Matched: matched}, nil
}

// nameSearch searches the whole site for a folder named like the final
// path segment. Exactly one match is required.
func (r *Resolver) nameSearch(ctx context.Context, siteID, driveID, folderPath string) (*Ref, error) {
	segments := strings.Split(folderPath, "/")
	final := segments[len(segments)-1]

	items, err := r.client.SearchSite(ctx, siteID, final)
	if err != nil {
		return nil, err
	}

	var matches []graph.Item

	for _, it := range items {
		if it.IsFolder && strings.EqualFold(it.Name, final) {
			matches = append(matches, it)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errNoMatch
	case 1:
		ref := &Ref{DriveID: matches[0].DriveID, FolderID: matches[0].ID, Matched: final}
		if ref.DriveID == "" {
			ref.DriveID = driveID
		}

		return ref, nil
	default:
		return nil, fmt.Errorf("resolve: %d folders named %q in site, need exactly one", len(matches), final)
	}
}

// driveByName treats the first path segment as a drive display name,
// requires it to match exactly one of the site's drives, and resolves the
// remaining segments inside that drive with the segment-walk strategy.
func (r *Resolver) driveByName(ctx context.Context, siteID, folderPath string) (*Ref, error) {
	segments := strings.Split(folderPath, "/")
	driveName := segments[0]

	drives, err := r.client.DrivesByName(ctx, siteID, driveName)
	if err != nil {
		return nil, err
	}

	switch len(drives) {
	case 0:
		return nil, errNoMatch
	case 1:
		// fall through
	default:
		return nil, fmt.Errorf("resolve: multiple drives named %q, need exactly one", driveName)
	}

	rest := segments[1:]
	if len(rest) == 0 {
		root, err := r.client.RootFolder(ctx, drives[0].ID)
		if err != nil {
			return nil, err
		}

		return &Ref{DriveID: drives[0].ID, FolderID: root.ID, Matched: driveName}, nil
	}

	return r.segmentWalk(ctx, drives[0].ID, rest)
}
