package storage

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
)

func encodePart(p acp.MessagePart) (kind acp.PartKind, callID string, payload []byte, err error) {
	kind = p.PartKind()
	switch v := p.(type) {
	case acp.TextPart:
		payload, err = json.Marshal(v)
	case acp.ReasoningPart:
		payload, err = json.Marshal(v)
	case acp.StepStartPart:
		payload, err = json.Marshal(v)
	case acp.StepFinishPart:
		payload, err = json.Marshal(v)
	case acp.ToolUsePart:
		callID = v.Call.ID
		payload, err = json.Marshal(v)
	case acp.ToolResultPart:
		callID = v.CallID
		payload, err = json.Marshal(v)
	case acp.PatchPart:
		payload, err = json.Marshal(v)
	case acp.SnapshotPart:
		payload, err = json.Marshal(v)
	case acp.CompactionPart:
		payload, err = json.Marshal(v)
	default:
		return "", "", nil, apperr.InvalidRequestf("storage: unknown message part type %T", p)
	}
	if err != nil {
		return "", "", nil, apperr.Wrap(apperr.SerializationError, "encode message part", err)
	}
	return kind, callID, payload, nil
}

func decodePart(kind acp.PartKind, compacted bool, payload []byte) (acp.MessagePart, error) {
	switch kind {
	case acp.PartText:
		var v acp.TextPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode text part", err)
		}
		return v, nil
	case acp.PartReasoning:
		var v acp.ReasoningPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode reasoning part", err)
		}
		return v, nil
	case acp.PartStepStart:
		return acp.StepStartPart{}, nil
	case acp.PartStepFinish:
		var v acp.StepFinishPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode step finish part", err)
		}
		return v, nil
	case acp.PartToolUse:
		var v acp.ToolUsePart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode tool use part", err)
		}
		return v, nil
	case acp.PartToolResult:
		var v acp.ToolResultPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode tool result part", err)
		}
		v.Compacted = compacted
		return v, nil
	case acp.PartPatch:
		var v acp.PatchPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode patch part", err)
		}
		return v, nil
	case acp.PartSnapshot:
		var v acp.SnapshotPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode snapshot part", err)
		}
		return v, nil
	case acp.PartCompaction:
		var v acp.CompactionPart
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, apperr.Wrap(apperr.SerializationError, "decode compaction part", err)
		}
		return v, nil
	default:
		return nil, apperr.InvalidRequestf("storage: unknown stored part kind %q", kind)
	}
}

func encodeEventPayload(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.SerializationError, fmt.Sprintf("encode event payload %T", v), err)
	}
	return b, nil
}
