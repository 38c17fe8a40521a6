package toolpolicy

import (
	"sync"

	"github.com/agentrt/core/internal/acp"
)

// Decision is the outcome of evaluating one tool call against a
// session's Config, before dispatch.
type Decision struct {
	Action Action
	// Reason is a short human-readable explanation, surfaced in the
	// error ToolResult when Action is ActionDeny.
	Reason string
	// BashPatterns holds the permission patterns this call resolved to,
	// when the tool is bash; a client's "always allow" response is
	// recorded against these via Approvals.Approve.
	BashPatterns []string
	// DoomLoop is set when this call also tripped the doom-loop detector.
	// It changes Action only when Config.DoomLoop is ActionDeny; otherwise
	// the Action decided above stands.
	DoomLoop bool
}

// Approvals remembers "always allow" responses collected through the
// client bridge's RequestPermission round trip, scoped per session, so a
// session only asks once per capability/pattern. A fresh instance has no
// memory; it's typically created alongside a SessionActor and cleared
// when the session closes.
type Approvals struct {
	mu       sync.RWMutex
	approved map[string]map[Capability]bool
	patterns map[string]map[string]bool
}

// NewApprovals constructs an empty approval cache.
func NewApprovals() *Approvals {
	return &Approvals{
		approved: make(map[string]map[Capability]bool),
		patterns: make(map[string]map[string]bool),
	}
}

// Approve records a capability, and any bash patterns, as permanently
// allowed for a session.
func (a *Approvals) Approve(sessionID string, cap Capability, patterns []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.approved[sessionID] == nil {
		a.approved[sessionID] = make(map[Capability]bool)
	}
	a.approved[sessionID][cap] = true

	if len(patterns) > 0 {
		if a.patterns[sessionID] == nil {
			a.patterns[sessionID] = make(map[string]bool)
		}
		for _, p := range patterns {
			a.patterns[sessionID][p] = true
		}
	}
}

func (a *Approvals) isApproved(sessionID string, cap Capability) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.approved[sessionID][cap]
}

func (a *Approvals) patternsApproved(sessionID string, patterns []string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	approved := a.patterns[sessionID]
	for _, p := range patterns {
		if !approved[p] {
			return false
		}
	}
	return true
}

// Clear forgets every approval recorded for a session.
func (a *Approvals) Clear(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.approved, sessionID)
	delete(a.patterns, sessionID)
}

// Evaluator ties a session's Config together with the doom-loop detector
// and approval memory to produce one Decision per tool call.
type Evaluator struct {
	doomLoop  *DoomLoopDetector
	approvals *Approvals
}

// NewEvaluator constructs an Evaluator with fresh doom-loop and approval
// state, meant to be shared by every session (both are internally keyed
// by session id).
func NewEvaluator() *Evaluator {
	return &Evaluator{doomLoop: NewDoomLoopDetector(), approvals: NewApprovals()}
}

func (e *Evaluator) Approvals() *Approvals { return e.approvals }

// Evaluate decides what to do with call under cfg for sessionID.
// requiredCaps comes from the tool's own declaration (spec §4.5); hasCWD
// reports whether the session has a working directory set, needed for
// the Filesystem capability gate.
func (e *Evaluator) Evaluate(sessionID string, call acp.ToolCall, cfg Config, requiredCaps []Capability, hasCWD bool) Decision {
	looped := e.doomLoop.Check(sessionID, call.ToolName, call.Arguments)

	if cfg.Policy == None {
		return Decision{Action: ActionDeny, Reason: "tool policy is none", DoomLoop: looped}
	}

	if action := cfg.checkToolName(call.ToolName); action == ActionDeny {
		return Decision{Action: ActionDeny, Reason: "tool is not in the allowed set", DoomLoop: looped}
	}

	for _, reqCap := range requiredCaps {
		if reqCap == CapabilityFilesystem && !hasCWD {
			return Decision{Action: ActionDeny, Reason: "filesystem capability requires a working directory", DoomLoop: looped}
		}
	}

	if looped && cfg.DoomLoop == ActionDeny {
		return Decision{Action: ActionDeny, Reason: "repeated identical call detected", DoomLoop: true}
	}

	if call.ToolName == "bash" {
		return e.evaluateBash(sessionID, call, cfg, looped)
	}

	return Decision{Action: ActionAllow, DoomLoop: looped}
}

func (e *Evaluator) evaluateBash(sessionID string, call acp.ToolCall, cfg Config, looped bool) Decision {
	raw, _ := call.Arguments["command"].(string)
	commands, err := ParseCommand(raw)
	if err != nil || len(commands) == 0 {
		return Decision{Action: ActionAsk, Reason: "could not parse command for pattern matching", DoomLoop: looped}
	}

	patterns := BuildPatterns(commands)
	if e.approvals.patternsApproved(sessionID, patterns) {
		return Decision{Action: ActionAllow, BashPatterns: patterns, DoomLoop: looped}
	}

	decided := ActionAllow
	for _, cmd := range commands {
		switch MatchBashPermission(cmd, cfg.Bash) {
		case ActionDeny:
			return Decision{Action: ActionDeny, Reason: "command matches a denied bash pattern", BashPatterns: patterns, DoomLoop: looped}
		case ActionAsk:
			decided = ActionAsk
		}
	}
	return Decision{Action: decided, BashPatterns: patterns, DoomLoop: looped}
}
