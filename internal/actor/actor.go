// Package actor implements the SessionActor described in spec §4.7: one
// single-threaded mailbox per session, message-at-a-time, fed from a
// buffered channel of closures rather than a hand-rolled switch over a sum
// type — the closure-mailbox shape lets each message keep its own typed
// signature while still guaranteeing only one message body runs at a time.
// Grounded on the teacher's session/service.go Service.active/abortChs map
// (per-session cancel-channel tracking), generalized from "one map entry
// per running session" into "one goroutine per session."
package actor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/engine"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/middleware"
	"github.com/agentrt/core/internal/obslog"
	"github.com/agentrt/core/internal/ratelimit"
	"github.com/agentrt/core/internal/sessionstore"
	"github.com/agentrt/core/internal/snapshot"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/tool"
	"github.com/agentrt/core/internal/toolpolicy"
)

// mailboxCapacity bounds how many messages may queue ahead of the actor
// before a send blocks the caller; Cancel and configuration messages are
// meant to interleave with a running Prompt, not stack up behind it.
const mailboxCapacity = 32

// Bridge is the client-bridge contract from spec §4.7: a fire-and-forget
// notification channel plus a request/response permission round trip. A
// nil Bridge means updates are suppressed and permissions default to
// allow, per the same section.
type Bridge interface {
	Notify(n acp.SessionNotification)
	RequestPermission(ctx context.Context, req acp.PermissionRequest) (acp.PermissionDecision, error)
}

// Deps bundles the process-wide collaborators every Actor shares, mirroring
// spec §4.7's "reference to the shared AgentConfig (provider, store, tool
// registry, middleware)".
type Deps struct {
	Store    *storage.Storage
	Sessions *sessionstore.SessionProvider
	Registry *tool.Registry
	Policy   *toolpolicy.Evaluator
	Bus      *eventbus.Bus
	Engine   *engine.Engine
	Log      *obslog.Logger
	Snapshot *snapshot.Manager // optional; nil disables snapshot wrapping and Undo/Redo
}

// Actor is one session's mailbox. Every exported method except IsRunning,
// ExtMethod, GetFileIndex and ReadRemoteFile enqueues a closure onto
// mailbox and, for request/response messages, blocks the caller (not
// the mailbox loop) on a private result channel — the same "spawn a
// detached task, stay responsive" split spec §4.7 requires of Prompt
// applies uniformly to every message that might outlive one mailbox turn.
type Actor struct {
	deps Deps
	log  *obslog.Logger

	mailbox chan func()
	done    chan struct{}

	// Fields below are owned exclusively by the mailbox goroutine; no
	// other goroutine may touch them directly.
	sc            *sessionstore.SessionContext
	pipeline      *middleware.Pipeline
	dedup         *middleware.Dedup
	policyCfg     toolpolicy.Config
	promptRunning bool
	cancelCh      chan struct{}
	bridge        Bridge
	relays        map[string]func()

	// redoSnapshot holds the state captured just before the most recent
	// Undo, so a following Redo can restore it. Cleared by any new prompt.
	redoSnapshot *snapshot.Snapshot

	// runningMu guards the one field a caller needs to peek at without
	// round-tripping through the mailbox: whether a prompt is in flight,
	// as reported by IsRunning.
	runningMu sync.RWMutex
	running   bool

	// sendMu drains in-flight sends before Shutdown closes mailbox: any
	// send() holds the read lock only for the enqueue itself, so Shutdown's
	// Lock() cannot proceed (and so cannot set closed/close the channel)
	// until every concurrent sender has either enqueued or observed closed.
	sendMu sync.RWMutex
	closed bool
}

// New constructs an Actor for an already-created or re-opened session and
// starts its mailbox goroutine. Callers choose the pipeline/dedup instance
// per session so session-scoped dedup history and turn/step counters don't
// leak across sessions.
func New(deps Deps, sc *sessionstore.SessionContext, pipeline *middleware.Pipeline, dedup *middleware.Dedup) *Actor {
	if deps.Log == nil {
		deps.Log = obslog.NewDefault()
	}
	a := &Actor{
		deps:      deps,
		log:       deps.Log.WithSession(sc.Session().ID),
		mailbox:   make(chan func(), mailboxCapacity),
		done:      make(chan struct{}),
		sc:        sc,
		pipeline:  pipeline,
		dedup:     dedup,
		policyCfg: toolpolicy.DefaultConfig(),
		relays:    make(map[string]func()),
	}
	go a.run()
	return a
}

func (a *Actor) run() {
	defer close(a.done)
	for fn := range a.mailbox {
		fn()
	}
}

// send enqueues fn, reporting false instead of panicking if Shutdown has
// already closed the mailbox.
func (a *Actor) send(fn func()) bool {
	a.sendMu.RLock()
	defer a.sendMu.RUnlock()
	if a.closed {
		return false
	}
	a.mailbox <- fn
	return true
}

// do enqueues fn and blocks the caller (never the mailbox loop itself)
// until fn has run to completion. A no-op once the actor has shut down.
func (a *Actor) do(fn func()) {
	reply := make(chan struct{})
	if !a.send(func() {
		fn()
		close(reply)
	}) {
		return
	}
	<-reply
}

// ---- Execution ----

// Prompt implements spec §4.7's Prompt message: rejected with a Conflict
// error if a prompt is already running, otherwise spawned in a detached
// goroutine so the mailbox stays responsive to Cancel and configuration
// messages while it runs. The caller still gets a normal blocking
// request/response call, since that is what the ACP prompt method needs.
func (a *Actor) Prompt(ctx context.Context, req acp.PromptRequest) (acp.PromptResponse, error) {
	type outcome struct {
		resp acp.PromptResponse
		err  error
	}
	resultCh := make(chan outcome, 1)
	started := make(chan error, 1)

	if !a.send(func() {
		if a.promptRunning {
			started <- apperr.New(apperr.Conflict, "a prompt is already running for this session")
			return
		}
		a.promptRunning = true
		a.redoSnapshot = nil
		a.setRunning(true)
		a.cancelCh = make(chan struct{})
		cancelCh := a.cancelCh
		started <- nil

		go func() {
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-cancelCh:
					cancel()
				case <-runCtx.Done():
				}
			}()

			resp, err := a.deps.Engine.RunPrompt(runCtx, engine.RunOpts{
				Session:  a.sc,
				ToolCtx:  a.toolContext(),
				Policy:   a.policyCfg,
				Pipeline: a.pipeline,
				Dedup:    a.dedup,
				Prune:    ratelimit.DefaultPruneConfig,
				Snapshot: a.deps.Snapshot,
			}, req)

			// Reset state through the mailbox and wait for it to be applied
			// before handing the result back to the caller, so by the time
			// Prompt returns there is no pending send on a.mailbox left racing
			// a concurrent Shutdown.
			a.do(func() {
				a.promptRunning = false
				a.cancelCh = nil
				a.setRunning(false)
			})
			resultCh <- outcome{resp, err}
		}()
	}) {
		return acp.PromptResponse{}, apperr.New(apperr.Cancelled, "actor is shutting down")
	}

	if err := <-started; err != nil {
		return acp.PromptResponse{}, err
	}
	out := <-resultCh
	return out.resp, out.err
}

// Cancel implements spec §4.7's Cancel message: signals the running
// prompt's cancel channel and returns immediately without waiting for the
// task to observe it.
func (a *Actor) Cancel() {
	a.do(func() {
		if a.cancelCh != nil {
			close(a.cancelCh)
			a.cancelCh = nil
		}
	})
}

func (a *Actor) setRunning(v bool) {
	a.runningMu.Lock()
	a.running = v
	a.runningMu.Unlock()
}

// IsRunning reports whether a prompt is currently in flight. Safe to call
// from any goroutine.
func (a *Actor) IsRunning() bool {
	a.runningMu.RLock()
	defer a.runningMu.RUnlock()
	return a.running
}

// ---- Configuration ----
// Per spec §4.7, configuration messages take effect on the next prompt;
// none of them reach into a running turn.

func (a *Actor) SetMode(ctx context.Context, mode acp.Mode) error {
	var err error
	a.do(func() {
		err = a.deps.Store.SetSessionMode(ctx, a.sc.Session().ID, mode)
		if err == nil {
			a.sc.Session().Mode = mode
		}
	})
	return err
}

func (a *Actor) GetMode() acp.Mode {
	var mode acp.Mode
	a.do(func() { mode = a.sc.Session().Mode })
	return mode
}

// SetProvider re-pins the session's LLM config to a (provider, model) pair,
// keeping any existing free-form params.
func (a *Actor) SetProvider(ctx context.Context, provider, model string) error {
	return a.SetLLMConfig(ctx, storage.LLMParams{Provider: provider, Model: model})
}

func (a *Actor) SetLLMConfig(ctx context.Context, params storage.LLMParams) error {
	var err error
	a.do(func() {
		var id int64
		id, err = a.deps.Store.CreateOrGetLLMConfig(ctx, params)
		if err != nil {
			return
		}
		err = a.deps.Store.SetSessionLLMConfig(ctx, a.sc.Session().ID, id)
		if err == nil {
			a.sc.Session().LLMConfigID = id
		}
	})
	return err
}

func (a *Actor) SetSessionModel(ctx context.Context, req acp.SetSessionModelRequest) error {
	params, err := a.GetLLMConfig(ctx)
	if err != nil {
		return err
	}
	params.Model = req.ModelID
	if req.ProviderNode != nil {
		params.Provider = *req.ProviderNode
	}
	return a.SetLLMConfig(ctx, params)
}

func (a *Actor) SetToolPolicy(policy toolpolicy.Policy) {
	a.do(func() { a.policyCfg.Policy = policy })
}

func (a *Actor) SetAllowedTools(names []string) {
	a.do(func() { a.policyCfg.AllowedTools = toSet(names) })
}

func (a *Actor) ClearAllowedTools() {
	a.do(func() { a.policyCfg.AllowedTools = nil })
}

func (a *Actor) SetDeniedTools(names []string) {
	a.do(func() { a.policyCfg.DeniedTools = toSet(names) })
}

func (a *Actor) ClearDeniedTools() {
	a.do(func() { a.policyCfg.DeniedTools = nil })
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// ---- Queries ----

func (a *Actor) GetSessionLimits() toolpolicy.Config {
	var cfg toolpolicy.Config
	a.do(func() { cfg = a.policyCfg })
	return cfg
}

func (a *Actor) GetLLMConfig(ctx context.Context) (storage.LLMParams, error) {
	var (
		params storage.LLMParams
		err    error
	)
	a.do(func() {
		params, err = a.deps.Store.GetLLMConfig(ctx, a.sc.Session().LLMConfigID)
	})
	return params, err
}

// GetHistory always reads from the store, never an in-memory cache, per
// spec §4.7.
func (a *Actor) GetHistory(ctx context.Context) ([]*acp.AgentMessage, error) {
	var (
		history []*acp.AgentMessage
		err     error
	)
	a.do(func() {
		history, err = a.sc.History(ctx)
	})
	return history, err
}

// ---- Lineage ----

// Undo and Redo are narrowed to the subset spec §4.9's snapshot subsystem
// would otherwise drive; without a wired snapshot backend they report
// NotFound rather than silently no-op. That NotFound is the same error a
// message with no recorded snapshot produces, so the two cases are not
// distinguished.
// Undo restores the workspace to its state just before the message
// identified by messageID, using the SnapshotPart(s) recorded on that
// message's tool-result parts (spec §4.9). It captures the pre-undo state
// first so a following Redo can reverse it.
func (a *Actor) Undo(ctx context.Context, messageID string) error {
	if a.deps.Snapshot == nil {
		return apperr.NotFoundf("no snapshot recorded for message %q", messageID)
	}

	var err error
	a.do(func() {
		var history []*acp.AgentMessage
		history, err = a.sc.History(ctx)
		if err != nil {
			return
		}

		var target *acp.SnapshotPart
		for _, msg := range history {
			if msg.ID != messageID {
				continue
			}
			for _, p := range msg.Parts {
				if sp, ok := p.(acp.SnapshotPart); ok {
					part := sp
					target = &part
				}
			}
		}
		if target == nil {
			err = apperr.NotFoundf("no snapshot recorded for message %q", messageID)
			return
		}

		cwd := a.toolContext().CWD
		pre, trackErr := a.deps.Snapshot.Tracker.Track(ctx, cwd)
		if trackErr != nil {
			err = trackErr
			return
		}

		restore := &snapshot.Snapshot{ID: snapshot.ID(target.RootHash), WorkDir: cwd}
		if restoreErr := a.deps.Snapshot.Tracker.Restore(ctx, restore, nil); restoreErr != nil {
			err = restoreErr
			return
		}
		a.redoSnapshot = pre
	})
	return err
}

// Redo restores the state captured just before the most recent Undo.
func (a *Actor) Redo(ctx context.Context) error {
	if a.deps.Snapshot == nil {
		return apperr.NotFoundf("no redoable snapshot for this session")
	}

	var err error
	a.do(func() {
		if a.redoSnapshot == nil {
			err = apperr.NotFoundf("no redoable snapshot for this session")
			return
		}
		if restoreErr := a.deps.Snapshot.Tracker.Restore(ctx, a.redoSnapshot, nil); restoreErr != nil {
			err = restoreErr
			return
		}
		a.redoSnapshot = nil
	})
	return err
}

func (a *Actor) SetPlanningContext(ctx context.Context, summary string) error {
	var err error
	a.do(func() {
		_, err = a.deps.Store.CreateIntentSnapshot(ctx, a.sc.Session().ID, summary)
	})
	return err
}

// ---- Extensions ----

func (a *Actor) ExtMethod(ctx context.Context, req acp.ExtRequest) (map[string]any, error) {
	return nil, apperr.InvalidRequestf("unknown extension method %q", req.Method)
}

func (a *Actor) ExtNotification(n acp.ExtNotification) {
	a.do(func() {
		a.log.Debug().Str("method", n.Method).Msg("ext notification")
	})
}

// ---- Event relay ----

// SubscribeEvents registers a relay for this session's events and returns
// its channel; UnsubscribeEvents(relayID) tears it down. relayID is
// caller-chosen (typically the client connection id) so a reconnecting
// client can cleanly replace its prior relay.
func (a *Actor) SubscribeEvents(relayID string) <-chan eventbus.Envelope {
	var ch <-chan eventbus.Envelope
	a.do(func() {
		if unsub, ok := a.relays[relayID]; ok {
			unsub()
		}
		c, unsub := a.deps.Bus.Subscribe(a.sc.Session().ID)
		a.relays[relayID] = unsub
		ch = c
	})
	return ch
}

func (a *Actor) UnsubscribeEvents(relayID string) {
	a.do(func() {
		if unsub, ok := a.relays[relayID]; ok {
			unsub()
			delete(a.relays, relayID)
		}
	})
}

// ---- File proxy ----

// GetFileIndex lists every regular file under the session's working
// directory, for clients without direct filesystem access.
func (a *Actor) GetFileIndex(ctx context.Context) ([]string, error) {
	tc := a.toolContext()
	if !tc.HasCWD() {
		return nil, apperr.InvalidRequestf("session has no working directory")
	}
	var files []string
	err := filepath.WalkDir(tc.CWD, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(tc.CWD, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "walk working directory", err)
	}
	return files, nil
}

// ReadRemoteFile reads a byte range of a path scoped to the session's
// working directory, per spec §4.5's resolve_path rule.
func (a *Actor) ReadRemoteFile(ctx context.Context, path string, offset, limit int) (string, error) {
	tc := a.toolContext()
	full, err := tc.ResolvePath(path)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidRequest, "resolve path", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", apperr.Wrap(apperr.NotFound, "read file", err)
	}
	if offset < 0 || offset > len(data) {
		offset = len(data)
	}
	end := len(data)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return string(data[offset:end]), nil
}

// ---- Lifecycle (local only, not serializable) ----

func (a *Actor) SetBridge(bridge Bridge) {
	a.do(func() { a.bridge = bridge })
}

// RequestPermission implements engine.PermissionRequester over the Bridge,
// per spec §4.7: "when the bridge is absent... permissions default to
// allow."
func (a *Actor) RequestPermission(ctx context.Context, sessionID string, call acp.ToolCall, bashPatterns []string) (allow, always bool, err error) {
	var bridge Bridge
	a.do(func() { bridge = a.bridge })
	if bridge == nil {
		return true, false, nil
	}
	decision, err := bridge.RequestPermission(ctx, acp.PermissionRequest{Tool: call.ToolName, Arguments: call.Arguments, Locations: bashPatterns})
	if err != nil {
		return false, false, err
	}
	switch decision {
	case acp.PermissionAlways:
		return true, true, nil
	case acp.PermissionOnce:
		return true, false, nil
	default:
		return false, false, nil
	}
}

// Shutdown cancels any running prompt, drops the bridge, and stops the
// mailbox goroutine. It blocks until the mailbox has drained.
func (a *Actor) Shutdown() {
	a.do(func() {
		if a.cancelCh != nil {
			close(a.cancelCh)
			a.cancelCh = nil
		}
		a.bridge = nil
		for _, unsub := range a.relays {
			unsub()
		}
		a.relays = nil
	})

	// Lock excludes every in-flight send(): each holds sendMu for read only
	// across the enqueue statement itself, so by the time Lock succeeds no
	// goroutine can still be blocked inside "a.mailbox <- fn" and it is
	// safe to close the channel.
	a.sendMu.Lock()
	a.closed = true
	a.sendMu.Unlock()

	close(a.mailbox)
	<-a.done
}

func (a *Actor) toolContext() *tool.Context {
	sess := a.sc.Session()
	cwd := ""
	if sess.Cwd != nil {
		cwd = *sess.Cwd
	}
	return &tool.Context{SessionID: sess.ID, CWD: cwd, Events: a.deps.Bus}
}
