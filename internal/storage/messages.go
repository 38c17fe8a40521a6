package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/ids"
)

// AddMessage persists msg and all of its parts in a single transaction, so
// the aggregated message is never observed half-populated by a concurrent
// reader (the same atomicity the execution engine's per-turn tool-result
// message relies on). Assigns an id and creation timestamp if absent.
func (s *Storage) AddMessage(ctx context.Context, sessionPublicID string, msg *acp.AgentMessage) error {
	if msg.ID == "" {
		msg.ID = ids.NewULID()
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var sessionInternalID int64
		if err := tx.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, sessionPublicID).
			Scan(&sessionInternalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("session %q not found", sessionPublicID)
			}
			return apperr.Wrap(apperr.BackendError, "add message: lookup session", err)
		}

		var nextSeq int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_internal_id = ?`,
			sessionInternalID).Scan(&nextSeq); err != nil {
			return apperr.Wrap(apperr.BackendError, "add message: compute seq", err)
		}

		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = timeFromMillis(nowMillis())
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (public_id, session_internal_id, role, created_at, parent_message_id, seq)
			VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, sessionInternalID, string(msg.Role), msg.CreatedAt.UnixMilli(), msg.ParentMessageID, nextSeq,
		)
		if err != nil {
			return mapConstraintErr("add message", err)
		}
		messageInternalID, err := res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "add message: read rowid", err)
		}
		msg.InternalID = messageInternalID

		// ToolUse parts must be indexed before any ToolResult part in the
		// same message can reference them, so insert in two passes.
		for _, part := range msg.Parts {
			if tu, ok := part.(acp.ToolUsePart); ok {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO tool_calls (session_internal_id, call_id, message_internal_id, tool_name)
					VALUES (?, ?, ?, ?)`,
					sessionInternalID, tu.Call.ID, messageInternalID, tu.Call.ToolName,
				); err != nil {
					return mapConstraintErr("add message: index tool call", err)
				}
			}
		}

		for i, part := range msg.Parts {
			kind, callID, payload, err := encodePart(part)
			if err != nil {
				return err
			}
			var callIDArg any
			if callID != "" {
				callIDArg = callID
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO message_parts (message_internal_id, session_internal_id, seq, kind, call_id, payload_json)
				VALUES (?, ?, ?, ?, ?, ?)`,
				messageInternalID, sessionInternalID, i, string(kind), callIDArg, payload,
			); err != nil {
				return mapConstraintErr("add message: insert part", err)
			}
		}

		return nil
	})
}

// GetHistory returns every message in a session in persisted order,
// including compacted tool results (the LLM-facing reduction to "since the
// last Compaction part" happens in the sessionstore façade, not here — see
// the Open Question decision recorded in DESIGN.md).
func (s *Storage) GetHistory(ctx context.Context, sessionPublicID string) ([]*acp.AgentMessage, error) {
	var sessionInternalID int64
	if err := s.db.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, sessionPublicID).
		Scan(&sessionInternalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("session %q not found", sessionPublicID)
		}
		return nil, apperr.Wrap(apperr.BackendError, "get history: lookup session", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT internal_id, public_id, role, created_at, parent_message_id
		FROM messages WHERE session_internal_id = ? ORDER BY seq ASC`, sessionInternalID)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "get history: query messages", err)
	}
	defer rows.Close()

	var out []*acp.AgentMessage
	for rows.Next() {
		var (
			m         acp.AgentMessage
			createdAt int64
			parentID  sql.NullString
		)
		if err := rows.Scan(&m.InternalID, &m.ID, &m.Role, &createdAt, &parentID); err != nil {
			return nil, apperr.Wrap(apperr.BackendError, "get history: scan message", err)
		}
		m.SessionID = sessionPublicID
		m.CreatedAt = timeFromMillis(createdAt)
		if parentID.Valid {
			m.ParentMessageID = &parentID.String
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "get history: iterate messages", err)
	}

	for _, m := range out {
		parts, err := s.loadParts(ctx, m.InternalID)
		if err != nil {
			return nil, err
		}
		m.Parts = parts
	}

	return out, nil
}

func (s *Storage) loadParts(ctx context.Context, messageInternalID int64) ([]acp.MessagePart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, compacted, payload_json FROM message_parts
		WHERE message_internal_id = ? ORDER BY seq ASC`, messageInternalID)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "load parts", err)
	}
	defer rows.Close()

	var parts []acp.MessagePart
	for rows.Next() {
		var (
			kind      string
			compacted bool
			payload   []byte
		)
		if err := rows.Scan(&kind, &compacted, &payload); err != nil {
			return nil, apperr.Wrap(apperr.BackendError, "load parts: scan", err)
		}
		part, err := decodePart(acp.PartKind(kind), compacted, payload)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// MarkToolResultsCompacted tags the named tool-result parts (by call_id,
// within sessionPublicID) as compacted, so the LLM replay view can skip
// them while they remain in persistent storage for audit. Idempotent:
// calling it again with the same ids updates zero rows on the second call.
func (s *Storage) MarkToolResultsCompacted(ctx context.Context, sessionPublicID string, callIDs []string) (int64, error) {
	if len(callIDs) == 0 {
		return 0, nil
	}

	var total int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var sessionInternalID int64
		if err := tx.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, sessionPublicID).
			Scan(&sessionInternalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("session %q not found", sessionPublicID)
			}
			return apperr.Wrap(apperr.BackendError, "mark compacted: lookup session", err)
		}

		for _, callID := range callIDs {
			res, err := tx.ExecContext(ctx, `
				UPDATE message_parts SET compacted = 1
				WHERE session_internal_id = ? AND call_id = ? AND kind = ? AND compacted = 0`,
				sessionInternalID, callID, string(acp.PartToolResult),
			)
			if err != nil {
				return apperr.Wrap(apperr.BackendError, "mark compacted: update", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperr.Wrap(apperr.BackendError, "mark compacted: rows affected", err)
			}
			total += n
		}
		return nil
	})
	return total, err
}
