package sessionstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/storage"
)

func newTestProvider(t *testing.T) *SessionProvider {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := eventbus.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	fallback := storage.LLMParams{Provider: "anthropic", Model: "claude-sonnet"}
	return NewProvider(store, bus, fallback, nil)
}

func TestCreateSessionResolvesFallbackLLMConfig(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sc, err := p.CreateSession(ctx, storage.CreateSessionOpts{Name: "s1"}, nil)
	require.NoError(t, err)
	assert.NotZero(t, sc.Session().LLMConfigID)

	cfg, err := p.store.GetLLMConfig(ctx, sc.Session().LLMConfigID)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
}

func TestCreateSessionReusesIdenticalParams(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	params := &storage.LLMParams{Provider: "openai", Model: "gpt-5"}
	sc1, err := p.CreateSession(ctx, storage.CreateSessionOpts{Name: "a"}, params)
	require.NoError(t, err)
	sc2, err := p.CreateSession(ctx, storage.CreateSessionOpts{Name: "b"}, params)
	require.NoError(t, err)

	assert.Equal(t, sc1.Session().LLMConfigID, sc2.Session().LLMConfigID)
}

func TestReduceForLLMStartsAtLastCompactionAndDropsReasoning(t *testing.T) {
	all := []*acp.AgentMessage{
		{ID: "m1", Role: acp.RoleUser, Parts: []acp.MessagePart{acp.TextPart{Text: "first"}}},
		{ID: "m2", Role: acp.RoleAssistant, Parts: []acp.MessagePart{
			acp.ReasoningPart{Text: "thinking"},
			acp.CompactionPart{Summary: "summary of m1", OriginalTokenCount: 500},
		}},
		{ID: "m3", Role: acp.RoleUser, Parts: []acp.MessagePart{acp.TextPart{Text: "second"}}},
		{ID: "m4", Role: acp.RoleAssistant, Parts: []acp.MessagePart{
			acp.ReasoningPart{Text: "more thinking"},
			acp.TextPart{Text: "reply"},
		}},
	}

	reduced := ReduceForLLM(all)
	require.Len(t, reduced, 3)
	assert.Equal(t, "m2", reduced[0].ID)
	assert.Equal(t, "m4", reduced[2].ID)

	for _, msg := range reduced {
		for _, part := range msg.Parts {
			assert.NotEqual(t, acp.PartReasoning, part.PartKind())
		}
	}
}

func TestReduceForLLMWithNoCompactionReturnsEverything(t *testing.T) {
	all := []*acp.AgentMessage{
		{ID: "m1", Parts: []acp.MessagePart{acp.TextPart{Text: "a"}}},
		{ID: "m2", Parts: []acp.MessagePart{acp.TextPart{Text: "b"}}},
	}
	reduced := ReduceForLLM(all)
	assert.Len(t, reduced, 2)
}

type fakeProvider struct {
	reply *acp.AgentMessage
}

func (f *fakeProvider) Complete(ctx context.Context, cfg storage.LLMParams, history []*acp.AgentMessage) (*acp.AgentMessage, error) {
	return f.reply, nil
}

func TestChatAppendsIncomingAndReply(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sc, err := p.CreateSession(ctx, storage.CreateSessionOpts{Name: "s1"}, nil)
	require.NoError(t, err)

	userMsg := &acp.AgentMessage{Role: acp.RoleUser, Parts: []acp.MessagePart{acp.TextPart{Text: "hi"}}}
	reply := &acp.AgentMessage{Role: acp.RoleAssistant, Parts: []acp.MessagePart{acp.TextPart{Text: "hello"}}}

	got, err := sc.Chat(ctx, []*acp.AgentMessage{userMsg}, &fakeProvider{reply: reply})
	require.NoError(t, err)
	assert.Equal(t, acp.RoleAssistant, got.Role)

	history, err := sc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, acp.RoleUser, history[0].Role)
	assert.Equal(t, acp.RoleAssistant, history[1].Role)
}
