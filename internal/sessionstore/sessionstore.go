// Package sessionstore is the typed façade over internal/storage described
// in spec §4.3: session lifecycle, LLM-config pinning with a singleflight
// guard against duplicate first-writer races, and history reduction to the
// LLM-facing view.
package sessionstore

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/obslog"
	"github.com/agentrt/core/internal/storage"
)

// Provider is the narrow contract this package calls out to the LLM layer
// through. The concrete wire shape of any given model's request/response is
// a named collaborator out of scope here (spec §1); sessionstore only needs
// "hand it a reduced history, get an assistant message back."
type Provider interface {
	Complete(ctx context.Context, cfg storage.LLMParams, history []*acp.AgentMessage) (*acp.AgentMessage, error)
}

// SessionProvider binds a storage backend and event bus to a fallback
// LLMParams used when a caller doesn't pin one explicitly, and mints
// SessionContext values.
type SessionProvider struct {
	store    *storage.Storage
	bus      *eventbus.Bus
	fallback storage.LLMParams
	log      *obslog.Logger

	// sf collapses concurrent CreateOrGetLLMConfig calls with identical
	// params (keyed by their JSON encoding) into one storage round trip; the storage layer is
	// already idempotent under races (see internal/storage/llmconfig.go),
	// this just avoids redundant work before even reaching it.
	sf singleflight.Group
}

// NewProvider constructs a SessionProvider. log may be nil.
func NewProvider(store *storage.Storage, bus *eventbus.Bus, fallback storage.LLMParams, log *obslog.Logger) *SessionProvider {
	if log == nil {
		log = obslog.NewDefault()
	}
	return &SessionProvider{store: store, bus: bus, fallback: fallback, log: log}
}

func (p *SessionProvider) resolveLLMConfigID(ctx context.Context, params *storage.LLMParams) (int64, error) {
	if params == nil {
		params = &p.fallback
	}
	key, err := json.Marshal(params)
	if err != nil {
		return p.store.CreateOrGetLLMConfig(ctx, *params)
	}
	v, err, _ := p.sf.Do(string(key), func() (any, error) {
		return p.store.CreateOrGetLLMConfig(ctx, *params)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// CreateSession creates a session row, resolving opts.LLMConfigID from
// opts.LLMParams (or the provider's fallback) when it isn't already set.
func (p *SessionProvider) CreateSession(ctx context.Context, opts storage.CreateSessionOpts, params *storage.LLMParams) (*SessionContext, error) {
	if opts.LLMConfigID == 0 {
		id, err := p.resolveLLMConfigID(ctx, params)
		if err != nil {
			return nil, err
		}
		opts.LLMConfigID = id
	}

	sess, err := p.store.CreateSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.log.WithSession(sess.ID).Info().Str("name", sess.Name).Msg("session created")

	p.bus.Publish(acp.Event{
		SessionID: sess.ID,
		Origin:    acp.OriginLocal,
		Kind:      acp.EventSessionCreated,
	})

	return &SessionContext{provider: p, session: sess}, nil
}

// Open loads an existing session into a SessionContext.
func (p *SessionProvider) Open(ctx context.Context, sessionID string) (*SessionContext, error) {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionContext{provider: p, session: sess}, nil
}

// SessionContext holds one session row and the operations the execution
// engine and middleware pipeline drive against it.
type SessionContext struct {
	provider *SessionProvider
	session  *acp.Session
}

// Session returns the underlying session row as of the last load.
func (sc *SessionContext) Session() *acp.Session { return sc.session }

// History returns the session's history reduced to the LLM-facing view per
// spec §4.3: starting at the message holding the last CompactionPart (if
// any), with ReasoningPart content and compacted tool results dropped from
// every message. The
// storage layer itself still returns the unreduced, unfiltered history
// (including compacted tool results) for audit — see GetHistory.
func (sc *SessionContext) History(ctx context.Context) ([]*acp.AgentMessage, error) {
	all, err := sc.provider.store.GetHistory(ctx, sc.session.ID)
	if err != nil {
		return nil, err
	}
	return ReduceForLLM(all), nil
}

// ReduceForLLM applies the spec §4.3 history reduction rule to an already
// loaded message slice: locate the last CompactionPart, slice from that
// message onward, and drop reasoning parts and compacted tool results
// everywhere in the result.
func ReduceForLLM(all []*acp.AgentMessage) []*acp.AgentMessage {
	start := 0
	for i, msg := range all {
		for _, part := range msg.Parts {
			if part.PartKind() == acp.PartCompaction {
				start = i
			}
		}
	}

	reduced := make([]*acp.AgentMessage, 0, len(all)-start)
	for _, msg := range all[start:] {
		reduced = append(reduced, filterForReplay(msg))
	}
	return reduced
}

// filterForReplay drops reasoning parts and compacted tool results from
// msg, returning msg itself when nothing is dropped.
func filterForReplay(msg *acp.AgentMessage) *acp.AgentMessage {
	filtered := make([]acp.MessagePart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		if part.PartKind() == acp.PartReasoning {
			continue
		}
		if tr, ok := part.(acp.ToolResultPart); ok && tr.Compacted {
			continue
		}
		filtered = append(filtered, part)
	}
	if len(filtered) == len(msg.Parts) {
		return msg
	}
	clone := *msg
	clone.Parts = filtered
	return &clone
}

// AddMessage persists msg and publishes a durable event announcing it.
func (sc *SessionContext) AddMessage(ctx context.Context, msg *acp.AgentMessage) error {
	if err := sc.provider.store.AddMessage(ctx, sc.session.ID, msg); err != nil {
		return err
	}

	kind := acp.EventUserMessageStored
	if msg.Role == acp.RoleAssistant {
		kind = acp.EventAssistantMessageStored
	}
	sc.provider.bus.Publish(acp.Event{
		SessionID: sc.session.ID,
		Origin:    acp.OriginLocal,
		Kind:      kind,
	})
	return nil
}

// Chat appends incoming messages, replays the full effective (reduced)
// history, calls prov, and appends and returns the assistant's reply.
func (sc *SessionContext) Chat(ctx context.Context, incoming []*acp.AgentMessage, prov Provider) (*acp.AgentMessage, error) {
	for _, msg := range incoming {
		if err := sc.AddMessage(ctx, msg); err != nil {
			return nil, err
		}
	}

	history, err := sc.History(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := sc.provider.store.GetLLMConfig(ctx, sc.session.LLMConfigID)
	if err != nil {
		return nil, err
	}

	reply, err := prov.Complete(ctx, *cfg, history)
	if err != nil {
		return nil, err
	}

	if err := sc.AddMessage(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
