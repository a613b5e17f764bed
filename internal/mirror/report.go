package mirror

import (
	"fmt"
	"sync"
)

// Report accumulates per-session upload outcomes. It is mutated only by
// the folder synchronizer and uploader during the session and read-only
// afterward. Thread-safe so a future parallel uploader would not need a
// different accumulator; the contract stays one-writer today.
type Report struct {
	mu                    sync.Mutex
	uploaded              int
	skipped               int
	failed                int
	failedFolderCreations int
	failedPaths           []string
}

// AddUploaded records one successfully transferred file.
func (r *Report) AddUploaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded++
}

// AddSkipped records a file left alone because the ledger shows it unchanged.
func (r *Report) AddSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

// AddFailed records a file that could not be transferred.
func (r *Report) AddFailed(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	r.failedPaths = append(r.failedPaths, path)
}

// AddFolderFailure records an abandoned subtree after a folder creation failure.
func (r *Report) AddFolderFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedFolderCreations++
}

func (r *Report) Uploaded() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.uploaded
}

func (r *Report) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.skipped
}

func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failed
}

func (r *Report) FailedFolderCreations() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failedFolderCreations
}

// FailedPaths returns a copy of the failed file paths in attempt order.
func (r *Report) FailedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, len(r.failedPaths))
	copy(paths, r.failedPaths)

	return paths
}

// Summary renders the report as a single human-readable line.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fmt.Sprintf("uploaded=%d skipped=%d failed=%d failed_folders=%d",
		r.uploaded, r.skipped, r.failed, r.failedFolderCreations)
}
