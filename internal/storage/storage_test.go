package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestSession(t *testing.T, s *Storage) *acp.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), CreateSessionOpts{Name: "root"})
	require.NoError(t, err)
	return sess
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, CreateSessionOpts{Name: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, acp.ModeBuild, sess.Mode)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "hello", got.Name)
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetSession(context.Background(), "does-not-exist")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateSessionUnknownParentIsNotFound(t *testing.T) {
	s := newTestStorage(t)
	parent := "nonexistent"
	_, err := s.CreateSession(context.Background(), CreateSessionOpts{Name: "child", ParentPublicID: &parent})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestForkLineageAndListChildren(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	parent := createTestSession(t, s)
	msgIdx := 3
	child, err := s.CreateSession(ctx, CreateSessionOpts{
		Name:            "fork",
		ParentPublicID:  &parent.ID,
		ForkOrigin:      acp.ForkOriginUser,
		ForkPointMsgIdx: &msgIdx,
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	children, err := s.ListChildSessions(ctx, parent.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{child.ID}, children)
}

func TestDeleteSessionCascadesEverything(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sess := createTestSession(t, s)

	err := s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role: acp.RoleAssistant,
		Parts: []acp.MessagePart{
			acp.TextPart{Text: "hi"},
			acp.ToolUsePart{Call: acp.ToolCall{ID: "call-1", ToolName: "read"}},
		},
	})
	require.NoError(t, err)

	_, err = s.AppendEvent(ctx, acp.Event{SessionID: sess.ID, Kind: acp.AgentEventKind("turn_started")})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, sess.ID, "do the thing")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err = s.GetSession(ctx, sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	history, err := s.GetHistory(ctx, sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Nil(t, history)

	tasks, err := s.ListTasks(ctx, sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Nil(t, tasks)
}

func TestAddMessageAndGetHistoryRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	sess := createTestSession(t, s)

	err := s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role:  acp.RoleUser,
		Parts: []acp.MessagePart{acp.TextPart{Text: "what is the weather"}},
	})
	require.NoError(t, err)

	err = s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role: acp.RoleAssistant,
		Parts: []acp.MessagePart{
			acp.TextPart{Text: "let me check"},
			acp.ToolUsePart{Call: acp.ToolCall{ID: "call-1", ToolName: "weather", Arguments: map[string]any{"city": "nyc"}}},
		},
	})
	require.NoError(t, err)

	err = s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role: acp.RoleTool,
		Parts: []acp.MessagePart{
			acp.ToolResultPart{CallID: "call-1", Content: "72F and sunny", ToolName: "weather"},
		},
	})
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, acp.RoleUser, history[0].Role)
	assert.Equal(t, acp.RoleAssistant, history[1].Role)
	assert.Equal(t, acp.RoleTool, history[2].Role)

	toolResult, ok := history[2].Parts[0].(acp.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", toolResult.CallID)
	assert.False(t, toolResult.Compacted)
}

func TestMarkToolResultsCompactedIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	sess := createTestSession(t, s)

	require.NoError(t, s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role:  acp.RoleAssistant,
		Parts: []acp.MessagePart{acp.ToolUsePart{Call: acp.ToolCall{ID: "call-1", ToolName: "read"}}},
	}))
	require.NoError(t, s.AddMessage(ctx, sess.ID, &acp.AgentMessage{
		Role:  acp.RoleTool,
		Parts: []acp.MessagePart{acp.ToolResultPart{CallID: "call-1", Content: "contents"}},
	}))

	n, err := s.MarkToolResultsCompacted(ctx, sess.ID, []string{"call-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.MarkToolResultsCompacted(ctx, sess.ID, []string{"call-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	history, err := s.GetHistory(ctx, sess.ID)
	require.NoError(t, err)
	toolResult := history[1].Parts[0].(acp.ToolResultPart)
	assert.True(t, toolResult.Compacted)
}

func TestAppendEventStreamSeqIsMonotonicAndGapFree(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	sess := createTestSession(t, s)

	var seqs []uint64
	for i := 0; i < 5; i++ {
		seq, err := s.AppendEvent(ctx, acp.Event{SessionID: sess.ID, Kind: acp.AgentEventKind("assistant_content_delta")})
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}

	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i])
	}

	events, err := s.GetEventsSince(ctx, sess.ID, seqs[1])
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, seqs[2], events[0].StreamSeq)
	assert.Equal(t, seqs[4], events[2].StreamSeq)
}

func TestCreateOrGetLLMConfigIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	params := LLMParams{
		Provider: "anthropic",
		Model:    "claude-sonnet",
		Params:   map[string]any{"temperature": 0.2, "top_p": 0.9},
	}

	id1, err := s.CreateOrGetLLMConfig(ctx, params)
	require.NoError(t, err)

	// Rebuild the map with different insertion order; the content hash must
	// still match since Params keys are sorted before hashing.
	reordered := LLMParams{
		Provider: "anthropic",
		Model:    "claude-sonnet",
		Params:   map[string]any{"top_p": 0.9, "temperature": 0.2},
	}
	id2, err := s.CreateOrGetLLMConfig(ctx, reordered)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := s.GetLLMConfig(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Provider)
	assert.Equal(t, "claude-sonnet", got.Model)
}

func TestSetSessionModeValidation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	sess := createTestSession(t, s)

	require.NoError(t, s.SetSessionMode(ctx, sess.ID, acp.ModePlan))
	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, acp.ModePlan, got.Mode)

	err = s.SetSessionMode(ctx, sess.ID, acp.Mode("bogus"))
	assert.True(t, apperr.Is(err, apperr.InvalidRequest))
}

func TestEntityCRUD(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	sess := createTestSession(t, s)

	task, err := s.CreateTask(ctx, sess.ID, "write tests")
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(ctx, task.PublicID, acp.TaskInProgress))

	tasks, err := s.ListTasks(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, acp.TaskInProgress, tasks[0].Status)

	_, err = s.CreateProgress(ctx, sess.ID, &task.InternalID, "halfway done")
	require.NoError(t, err)

	_, err = s.CreateDecision(ctx, sess.ID, "which approach", "plan A", "simpler")
	require.NoError(t, err)

	_, err = s.CreateArtifact(ctx, sess.ID, "report.md", "text/markdown", "file:///tmp/report.md")
	require.NoError(t, err)

	_, err = s.CreateDelegation(ctx, sess.ID, "child-session-id", "go implement the subtask")
	require.NoError(t, err)

	_, err = s.CreateIntentSnapshot(ctx, sess.ID, "user wants a test suite")
	require.NoError(t, err)
	snap, err := s.LatestIntentSnapshot(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user wants a test suite", snap.Summary)
}
