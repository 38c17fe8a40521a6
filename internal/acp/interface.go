package acp

// This file names the external ACP surface the engine consumes and emits,
// per spec §6. It stops at the Go-value boundary: JSON-RPC framing and
// stdio/WebSocket transport are named collaborators (see Transport below)
// and are not implemented in this package.

// ContentBlockKind is the closed set of prompt content block variants.
type ContentBlockKind string

const (
	ContentText         ContentBlockKind = "text"
	ContentResourceLink ContentBlockKind = "resource_link"
	ContentResource     ContentBlockKind = "resource"
	ContentImage        ContentBlockKind = "image"
	ContentAudio        ContentBlockKind = "audio"
)

// ContentBlock is one unit of prompt input.
type ContentBlock struct {
	Kind ContentBlockKind

	// Text
	Text string

	// ResourceLink
	URI         string
	Name        string
	Description *string

	// Resource (embedded text or blob)
	ResourceIsText bool
	ResourceText   string
	ResourceBlob   []byte
	ResourceMime   string

	// Image / Audio
	Mime string
	Data []byte
}

// NewSessionRequest asks the engine to create a session.
type NewSessionRequest struct {
	Cwd *string
}

// NewSessionResponse returns the newly created session's public id.
type NewSessionResponse struct {
	SessionID string
}

// PromptRequest asks the engine to run one prompt turn.
type PromptRequest struct {
	SessionID string
	Prompt    []ContentBlock
}

// StopReason is the closed set of terminal reasons a prompt turn can end
// with, surfaced to the ACP client.
type StopReason string

const (
	StopEndTurn        StopReason = "end_turn"
	StopMaxTurnRequests StopReason = "max_turn_requests"
	StopError          StopReason = "error"
	StopCancelled      StopReason = "cancelled"
)

// PromptResponse is returned once a prompt turn reaches a terminal state.
type PromptResponse struct {
	StopReason StopReason
	Message    string
}

// CancelNotification asks the engine to cancel the in-flight prompt for a
// session.
type CancelNotification struct {
	SessionID string
}

// SetSessionModelRequest re-pins a session's LLM config.
type SetSessionModelRequest struct {
	SessionID    string
	ProviderNode *string
	ModelID      string
}

// ExtRequest/ExtNotification are the small extension points the protocol
// reserves for subsystem-specific methods (delegation, remote provider
// routing, file proxy) that don't warrant new top-level RPCs.
type ExtRequest struct {
	Method string
	Params map[string]any
}

type ExtNotification struct {
	Method string
	Params map[string]any
}

// SessionNotification is a server-to-client push: assistant deltas,
// tool-call lifecycle, and status updates. Carried over the Bridge (see
// the actor package), not serialized here.
type SessionNotification struct {
	SessionID string
	Kind      AgentEventKind
	Payload   any
}

// PermissionRequest is a server-to-client round trip asking for
// confirmation before a mutating tool call proceeds.
type PermissionRequest struct {
	Tool      string
	Arguments map[string]any
	Locations []string
}

// PermissionDecision is the client's answer to a PermissionRequest.
type PermissionDecision string

const (
	PermissionOnce   PermissionDecision = "once"
	PermissionAlways PermissionDecision = "always"
	PermissionReject PermissionDecision = "reject"
)

// Transport is the closed set of supported ACP transports. WSS is
// explicitly rejected: only plaintext stdio and ws:// are supported.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportWS    Transport = "ws"
)

// ParseTransport validates a transport URI scheme without attempting to
// dial it — dialing is the (out-of-scope) transport collaborator's job.
func ParseTransport(scheme string) (Transport, error) {
	switch scheme {
	case "stdio":
		return TransportStdio, nil
	case "ws":
		return TransportWS, nil
	case "wss":
		return "", errWSSNotSupported
	default:
		return "", errUnknownTransport(scheme)
	}
}

type transportError string

func (e transportError) Error() string { return string(e) }

const errWSSNotSupported = transportError("acp: wss transport is not yet supported")

func errUnknownTransport(scheme string) error {
	return transportError("acp: unknown transport scheme " + scheme)
}
