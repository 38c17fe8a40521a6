package snapshot

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// GitBackend tracks worktree state using git plumbing: a snapshot is the
// commit object git stash create would hand back, taken without touching
// the real stash ref, the index, or the working tree. Restore and
// ChangedPaths then work against that commit like any other revision.
type GitBackend struct{}

// IsAvailable reports whether workDir sits inside a git repository.
func (GitBackend) IsAvailable(workDir string) bool {
	_, err := runGit(context.Background(), workDir, "rev-parse", "--git-dir")
	return err == nil
}

// Track captures the current worktree+index state as a commit object. A
// clean worktree produces no stash candidate, in which case HEAD itself is
// the snapshot.
func (GitBackend) Track(ctx context.Context, workDir string) (ID, error) {
	out, err := runGit(ctx, workDir, "stash", "create")
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(out))
	if hash == "" {
		out, err = runGit(ctx, workDir, "rev-parse", "HEAD")
		if err != nil {
			return "", err
		}
		hash = strings.TrimSpace(string(out))
	}
	return ID(hash), nil
}

// Restore checks paths out of id. An empty paths list restores the whole
// tree id covers.
func (GitBackend) Restore(ctx context.Context, workDir string, id ID, paths []string) error {
	args := []string{"checkout", string(id), "--"}
	if len(paths) == 0 {
		args = append(args, ".")
	} else {
		args = append(args, paths...)
	}
	_, err := runGit(ctx, workDir, args...)
	return err
}

// Content reads path as it existed at id. A missing path (the file didn't
// exist in that snapshot) is reported as empty content, not an error —
// callers treat that the same as "file created by this tool call."
func (GitBackend) Content(ctx context.Context, workDir string, id ID, path string) ([]byte, error) {
	out, err := runGit(ctx, workDir, "show", string(id)+":"+path)
	if err != nil {
		return nil, nil
	}
	return out, nil
}

// ChangedPaths lists paths that differ between pre and the current
// worktree.
func (GitBackend) ChangedPaths(ctx context.Context, pre *Snapshot) ([]string, error) {
	out, err := runGit(ctx, pre.WorkDir, "diff", "--name-only", string(pre.ID))
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
