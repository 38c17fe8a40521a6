package snapshot

import (
	"context"

	"github.com/agentrt/core/internal/acp"
)

// Manager wraps a single mutating tool call per spec §4.9: take a
// snapshot before dispatch, run the tool, and record a Snapshot part with
// the root hash and (for PolicyDiff) a terse diff summary.
type Manager struct {
	Tracker  *Tracker
	Mutating MutatingConfig
	Policy   Policy
}

// NewManager builds a Manager, defaulting Tracker to a git-backed one and
// Mutating to DefaultMutatingConfig when zero-valued.
func NewManager(tracker *Tracker, mutating MutatingConfig, policy Policy) *Manager {
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	if mutating.Tools == nil && !mutating.AssumeMutating {
		mutating = DefaultMutatingConfig()
	}
	return &Manager{Tracker: tracker, Mutating: mutating, Policy: policy}
}

// Wrap runs dispatch, surrounding it with a pre-call Track and, for
// PolicyDiff, a post-call Diff, whenever policy and toolName's mutating
// classification call for it. It returns dispatch's result unchanged plus
// an optional SnapshotPart the caller should append alongside it.
//
// A nil Manager, PolicyNone, a non-mutating tool, or a workDir the backend
// can't track (no git repo) all fall through to running dispatch with no
// wrapping at all — this is the engine's "is this mutating?" plus
// "is_available(worktree)" gate from spec §4.9 collapsed into one call.
func (m *Manager) Wrap(ctx context.Context, workDir, toolName string, dispatch func() acp.ToolResultPart) (acp.ToolResultPart, *acp.SnapshotPart) {
	if m == nil || m.Policy == PolicyNone || !m.Mutating.IsMutating(toolName) {
		return dispatch(), nil
	}

	pre, err := m.Tracker.Track(ctx, workDir)
	result := dispatch()
	if err != nil || pre == nil {
		return result, nil
	}

	part := &acp.SnapshotPart{RootHash: string(pre.ID)}
	if m.Policy == PolicyDiff {
		if _, summary, derr := m.Tracker.Diff(ctx, pre); derr == nil {
			part.DiffSummary = summary
		}
	}
	return result, part
}
