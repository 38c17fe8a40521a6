package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/ids"
)

// CreateSessionOpts configures CreateSession.
type CreateSessionOpts struct {
	Name             string
	Cwd              *string
	ParentPublicID   *string
	ForkOrigin       acp.ForkOrigin
	ForkPointMsgIdx  *int
	ForkPointProgID  *string
	ForkInstructions string
	LLMConfigID      int64
}

// CreateSession inserts a new session row. If ParentPublicID is set, it must
// already exist (enforced both by the FK and, before that, an explicit
// lookup so the caller gets a clean NotFound instead of a raw constraint
// error) — this is also what rules out parent/child cycles: a session can
// only ever point at a parent that was created strictly before it.
func (s *Storage) CreateSession(ctx context.Context, opts CreateSessionOpts) (*acp.Session, error) {
	sess := &acp.Session{
		ID:               ids.NewULID(),
		Name:             opts.Name,
		Cwd:              opts.Cwd,
		ForkOrigin:       opts.ForkOrigin,
		ForkPointMsgIdx:  opts.ForkPointMsgIdx,
		ForkPointProgID:  opts.ForkPointProgID,
		ForkInstructions: opts.ForkInstructions,
		LLMConfigID:      opts.LLMConfigID,
		Mode:             acp.ModeBuild,
	}
	now := nowMillis()

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var parentInternalID *int64
		if opts.ParentPublicID != nil {
			var pid int64
			row := tx.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, *opts.ParentPublicID)
			if err := row.Scan(&pid); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperr.NotFoundf("parent session %q not found", *opts.ParentPublicID)
				}
				return apperr.Wrap(apperr.BackendError, "lookup parent session", err)
			}
			parentInternalID = &pid
			sess.ParentID = opts.ParentPublicID
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (public_id, name, cwd, parent_internal_id, fork_point_msg_idx,
				fork_point_prog_id, fork_origin, fork_instructions, llm_config_id, mode, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.Name, sess.Cwd, parentInternalID, sess.ForkPointMsgIdx,
			sess.ForkPointProgID, string(sess.ForkOrigin), sess.ForkInstructions,
			nullableConfigID(sess.LLMConfigID), string(sess.Mode), now, now,
		)
		if err != nil {
			return mapConstraintErr("create session", err)
		}
		internalID, err := res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "create session: read rowid", err)
		}
		sess.InternalID = internalID
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess.CreatedAt = timeFromMillis(now)
	sess.UpdatedAt = timeFromMillis(now)
	return sess, nil
}

func nullableConfigID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// GetSession retrieves a session by its public id.
func (s *Storage) GetSession(ctx context.Context, publicID string) (*acp.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT internal_id, public_id, name, cwd, parent_internal_id, fork_point_msg_idx,
			fork_point_prog_id, fork_origin, fork_instructions, llm_config_id, mode, created_at, updated_at
		FROM sessions WHERE public_id = ?`, publicID)

	return scanSession(ctx, s.db, row)
}

func scanSession(ctx context.Context, db *sql.DB, row *sql.Row) (*acp.Session, error) {
	var (
		sess           acp.Session
		cwd            sql.NullString
		parentInternal sql.NullInt64
		forkMsgIdx     sql.NullInt64
		forkProgID     sql.NullString
		llmConfigID    sql.NullInt64
		createdAt      int64
		updatedAt      int64
	)

	err := row.Scan(&sess.InternalID, &sess.ID, &sess.Name, &cwd, &parentInternal, &forkMsgIdx,
		&forkProgID, &sess.ForkOrigin, &sess.ForkInstructions, &llmConfigID, &sess.Mode, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("session not found")
		}
		return nil, apperr.Wrap(apperr.BackendError, "get session", err)
	}

	if cwd.Valid {
		sess.Cwd = &cwd.String
	}
	if forkMsgIdx.Valid {
		v := int(forkMsgIdx.Int64)
		sess.ForkPointMsgIdx = &v
	}
	if forkProgID.Valid {
		sess.ForkPointProgID = &forkProgID.String
	}
	if llmConfigID.Valid {
		sess.LLMConfigID = llmConfigID.Int64
	}
	sess.CreatedAt = timeFromMillis(createdAt)
	sess.UpdatedAt = timeFromMillis(updatedAt)

	if parentInternal.Valid {
		var parentPublicID string
		if err := db.QueryRowContext(ctx, `SELECT public_id FROM sessions WHERE internal_id = ?`, parentInternal.Int64).
			Scan(&parentPublicID); err == nil {
			sess.ParentID = &parentPublicID
		}
	}

	return &sess, nil
}

// ListChildSessions returns the public ids of every direct child of parent,
// an O(1)-per-row lookup via the parent-id index.
func (s *Storage) ListChildSessions(ctx context.Context, parentPublicID string) ([]string, error) {
	var parentInternal int64
	if err := s.db.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, parentPublicID).
		Scan(&parentInternal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("session %q not found", parentPublicID)
		}
		return nil, apperr.Wrap(apperr.BackendError, "list children", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT public_id FROM sessions WHERE parent_internal_id = ?`, parentInternal)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "list children", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.BackendError, "list children: scan", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, via ON DELETE CASCADE, every row
// anywhere in the backend that references it (messages, parts, tool-call
// index entries, events, tasks/decisions/progress/artifacts/delegations)
// as well as every recursive child session.
func (s *Storage) DeleteSession(ctx context.Context, publicID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE public_id = ?`, publicID)
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "delete session", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "delete session: rows affected", err)
		}
		if n == 0 {
			return apperr.NotFoundf("session %q not found", publicID)
		}
		return nil
	})
}

// SetSessionLLMConfig re-pins a session's active LLM config. Changing the
// model mid-session does not rewrite history: every prior AgentMessage
// still carries the config id it was generated under.
func (s *Storage) SetSessionLLMConfig(ctx context.Context, sessionPublicID string, configID int64) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET llm_config_id = ?, updated_at = ? WHERE public_id = ?`,
			configID, nowMillis(), sessionPublicID)
		if err != nil {
			return mapConstraintErr("set session llm config", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "set session llm config: rows affected", err)
		}
		if n == 0 {
			return apperr.NotFoundf("session %q not found", sessionPublicID)
		}
		return nil
	})
}

// SetSessionMode updates the session's agent mode (Plan | Build | Ask).
func (s *Storage) SetSessionMode(ctx context.Context, sessionPublicID string, mode acp.Mode) error {
	switch mode {
	case acp.ModePlan, acp.ModeBuild, acp.ModeAsk:
	default:
		return apperr.InvalidRequestf("invalid mode %q", mode)
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET mode = ?, updated_at = ? WHERE public_id = ?`,
			string(mode), nowMillis(), sessionPublicID)
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "set session mode", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.NotFoundf("session %q not found", sessionPublicID)
		}
		return nil
	})
}
