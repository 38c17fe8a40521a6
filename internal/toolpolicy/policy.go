// Package toolpolicy decides, for each tool call a session's assistant
// wants to make, whether to dispatch it, deny it, or escalate to the
// client for confirmation, per spec §4.5/§4.6.
package toolpolicy

// Action is the decision for one tool call.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// Policy is the per-session ToolPolicy variant named in spec §4.6.
type Policy string

const (
	// BuiltInAndProvider dispatches locally or forwards to the
	// provider's own tool-calling, whichever the call names.
	BuiltInAndProvider Policy = "built_in_and_provider"
	BuiltInOnly        Policy = "built_in_only"
	ProviderOnly       Policy = "provider_only"
	None               Policy = "none"
)

// Capability is a coarse-grained requirement a tool declares. Only
// Filesystem exists today per spec §4.5.
type Capability string

const CapabilityFilesystem Capability = "filesystem"

// BashPermissions maps bash command patterns (as built by BuildPattern) to
// an action, mirroring the teacher's AgentPermissions.Bash map.
type BashPermissions map[string]Action

// Config is the evaluated allow/deny state for one session, assembled
// from SetToolPolicy/SetAllowedTools/SetDeniedTools actor messages
// (spec §4.7).
type Config struct {
	Policy       Policy
	AllowedTools map[string]bool // nil/empty means "no allow-list filter"
	DeniedTools  map[string]bool
	Bash         BashPermissions
	Edit         Action
	WebFetch     Action
	ExternalDir  Action
	DoomLoop     Action
}

// DefaultConfig returns the ask-everything-but-dispatch-built-ins default,
// matching the teacher's DefaultAgentPermissions.
func DefaultConfig() Config {
	return Config{
		Policy:      BuiltInAndProvider,
		Bash:        BashPermissions{},
		Edit:        ActionAsk,
		WebFetch:    ActionAllow,
		ExternalDir: ActionAsk,
		DoomLoop:    ActionAsk,
	}
}

// checkToolName applies the allow-list then the deny-list. An empty
// allow-list means "every tool is allowed, subject to the deny-list";
// a populated one means only matching tools pass. Entries may be exact
// names or globs (e.g. "mcp__*").
func (c Config) checkToolName(name string) Action {
	if len(c.AllowedTools) > 0 && !matchAny(c.AllowedTools, name) {
		return ActionDeny
	}
	if matchAny(c.DeniedTools, name) {
		return ActionDeny
	}
	return ActionAllow
}
