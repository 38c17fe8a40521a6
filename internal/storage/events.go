package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/ids"
)

// AppendEvent persists ev and assigns it a stream_seq from the single
// AUTOINCREMENT sequence backing the events table. The row is visible to
// readers only once the surrounding transaction commits, satisfying the
// atomic-append guarantee in spec §4.1: for any two events appended in
// write order, the earlier one always has the smaller stream_seq, with no
// gaps and no duplicates.
func (s *Storage) AppendEvent(ctx context.Context, ev acp.Event) (uint64, error) {
	if ev.EventID == "" {
		ev.EventID = ids.NewULID()
	}
	payload, err := encodeEventPayload(ev.Payload)
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var sessionInternalID int64
		if err := tx.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, ev.SessionID).
			Scan(&sessionInternalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("session %q not found", ev.SessionID)
			}
			return apperr.Wrap(apperr.BackendError, "append event: lookup session", err)
		}

		ts := ev.Timestamp
		if ts.IsZero() {
			ts = timeFromMillis(nowMillis())
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO events (event_id, session_internal_id, timestamp, origin, source_node, kind, payload_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.EventID, sessionInternalID, ts.UnixMilli(), string(ev.Origin), ev.SourceNode, string(ev.Kind), payload,
		)
		if err != nil {
			return mapConstraintErr("append event", err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "append event: read rowid", err)
		}
		seq = uint64(rowid)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetEventsSince returns every durable event for sessionPublicID with
// stream_seq > afterSeq, in ascending order.
func (s *Storage) GetEventsSince(ctx context.Context, sessionPublicID string, afterSeq uint64) ([]acp.Event, error) {
	var sessionInternalID int64
	if err := s.db.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, sessionPublicID).
		Scan(&sessionInternalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("session %q not found", sessionPublicID)
		}
		return nil, apperr.Wrap(apperr.BackendError, "get events: lookup session", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_seq, event_id, timestamp, origin, source_node, kind, payload_json
		FROM events WHERE session_internal_id = ? AND stream_seq > ? ORDER BY stream_seq ASC`,
		sessionInternalID, afterSeq)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "get events: query", err)
	}
	defer rows.Close()

	var out []acp.Event
	for rows.Next() {
		var (
			ev        acp.Event
			ts        int64
			payloadRaw []byte
		)
		if err := rows.Scan(&ev.StreamSeq, &ev.EventID, &ts, &ev.Origin, &ev.SourceNode, &ev.Kind, &payloadRaw); err != nil {
			return nil, apperr.Wrap(apperr.BackendError, "get events: scan", err)
		}
		ev.SessionID = sessionPublicID
		ev.Timestamp = timeFromMillis(ts)
		ev.Payload = payloadRaw // caller decodes into the concrete payload type it expects for ev.Kind
		out = append(out, ev)
	}
	return out, rows.Err()
}
