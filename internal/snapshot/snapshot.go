// Package snapshot implements the workspace snapshot/diff/undo-redo
// subsystem described in spec §4.9: before a mutating tool call, track the
// worktree and record a SnapshotId (a root hash); after it runs, diff
// against that snapshot to produce a terse summary; Undo restores specific
// paths from the snapshot, Redo restores the state captured just before
// the undo.
//
// The teacher has no snapshot/undo subsystem of its own; opencode's actual
// product does this via VCS integration. internal/vcs (since deleted from
// this tree, it only ever watched .git/HEAD for branch changes) supplied
// the os/exec-against-git shape this package's Backend follows. Diff
// summaries are rendered with the teacher's own diff library
// (github.com/sergi/go-diff, also used by internal/tool's edit/write
// tools), computed in parallel per changed path with
// golang.org/x/sync/errgroup.
package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"github.com/agentrt/core/internal/apperr"
)

// ID is a content-addressed snapshot identifier: the git backend uses the
// commit/tree hash it captured the worktree under.
type ID string

// Snapshot is a tracked worktree state: an id a Backend can later restore
// from or diff against, plus the directory it was taken in.
type Snapshot struct {
	ID      ID
	WorkDir string
}

// Policy controls how much bookkeeping wraps a mutating tool call, per
// spec §4.9 ("Snapshot policy is one of None | Metadata | Diff").
type Policy string

const (
	// PolicyNone disables snapshot wrapping entirely.
	PolicyNone Policy = "none"
	// PolicyMetadata records only the root hash; no diff is computed.
	PolicyMetadata Policy = "metadata"
	// PolicyDiff records the root hash and a terse diff summary.
	PolicyDiff Policy = "diff"
)

// MutatingConfig is the whitelist plus "assume mutating" default the
// engine consults to decide whether a tool call deserves snapshot
// wrapping at all, per spec §4.9.
type MutatingConfig struct {
	Tools          map[string]bool
	AssumeMutating bool
}

// DefaultMutatingConfig classifies this tree's own built-in tools: write,
// edit, and bash touch the filesystem; the read-only tools don't.
func DefaultMutatingConfig() MutatingConfig {
	return MutatingConfig{
		Tools: map[string]bool{
			"write":    true,
			"edit":     true,
			"bash":     true,
			"read":     false,
			"grep":     false,
			"glob":     false,
			"list":     false,
			"webfetch": false,
		},
	}
}

// IsMutating reports whether tool deserves snapshot wrapping: an explicit
// whitelist entry wins, otherwise AssumeMutating is the fallback for tools
// this config has never heard of (new or third-party MCP tools).
func (c MutatingConfig) IsMutating(tool string) bool {
	if v, ok := c.Tools[tool]; ok {
		return v
	}
	return c.AssumeMutating
}

// Backend tracks and restores worktree state. Git is the only backend
// implemented today; spec §4.9 calls for backends to be
// is_available(worktree)-aware so the engine can skip wrapping cleanly
// when none applies (e.g. a worktree with no VCS at all).
type Backend interface {
	IsAvailable(workDir string) bool
	Track(ctx context.Context, workDir string) (ID, error)
	Restore(ctx context.Context, workDir string, id ID, paths []string) error
	Content(ctx context.Context, workDir string, id ID, path string) ([]byte, error)
	ChangedPaths(ctx context.Context, pre *Snapshot) ([]string, error)
}

// Tracker drives a Backend through the track/diff/restore cycle spec §4.9
// describes around a single mutating tool call.
type Tracker struct {
	backend Backend
}

// NewTracker wraps backend, defaulting to GitBackend when nil.
func NewTracker(backend Backend) *Tracker {
	if backend == nil {
		backend = GitBackend{}
	}
	return &Tracker{backend: backend}
}

// Track takes a snapshot of workDir. It returns (nil, nil) rather than an
// error when the backend reports the worktree unavailable, so callers can
// skip snapshot wrapping entirely instead of failing the tool call.
func (t *Tracker) Track(ctx context.Context, workDir string) (*Snapshot, error) {
	if workDir == "" || !t.backend.IsAvailable(workDir) {
		return nil, nil
	}
	id, err := t.backend.Track(ctx, workDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "track worktree snapshot", err)
	}
	return &Snapshot{ID: id, WorkDir: workDir}, nil
}

// Diff compares the worktree's current state against pre, returning the
// changed paths and a terse unified-diff summary across all of them. Per
// changed path the before content comes from the backend's snapshot and
// the after content from disk; the comparisons run concurrently.
func (t *Tracker) Diff(ctx context.Context, pre *Snapshot) ([]string, string, error) {
	if pre == nil {
		return nil, "", nil
	}

	paths, err := t.backend.ChangedPaths(ctx, pre)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.BackendError, "list changed paths", err)
	}
	if len(paths) == 0 {
		return nil, "", nil
	}
	sort.Strings(paths)

	summaries := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			before, _ := t.backend.Content(gctx, pre.WorkDir, pre.ID, p)
			after, readErr := os.ReadFile(filepath.Join(pre.WorkDir, p))
			if readErr != nil {
				after = nil
			}
			summaries[i] = diffSummary(p, string(before), string(after))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", apperr.Wrap(apperr.BackendError, "diff changed paths", err)
	}

	return paths, strings.Join(nonEmpty(summaries), "\n"), nil
}

// Restore restores paths (or every tracked path, when paths is empty) from
// snap. Used both for Undo (restore the pre-call snapshot) and Redo
// (restore the post-call snapshot captured just before the undo ran).
func (t *Tracker) Restore(ctx context.Context, snap *Snapshot, paths []string) error {
	if snap == nil {
		return apperr.NotFoundf("no snapshot to restore")
	}
	if err := t.backend.Restore(ctx, snap.WorkDir, snap.ID, paths); err != nil {
		return apperr.Wrap(apperr.BackendError, "restore snapshot", err)
	}
	return nil
}

// diffSummary renders a unified-diff-style patch between before and after,
// grounded on internal/tool's own buildDiffMetadata: line-level diffing via
// diffmatchpatch's DiffLinesToChars/DiffCharsToLines round trip, which
// keeps the patch text readable instead of character-granular.
func diffSummary(path, before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	patches := dmp.PatchMake(before, diffs)
	text := dmp.PatchToText(patches)
	if text == "" {
		return ""
	}
	var b2 strings.Builder
	b2.WriteString("--- " + path + "\n")
	b2.WriteString("+++ " + path + "\n")
	b2.WriteString(text)
	return b2.String()
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
