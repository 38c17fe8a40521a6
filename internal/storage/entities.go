package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/ids"
)

func (s *Storage) sessionInternalID(ctx context.Context, tx *sql.Tx, publicID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, publicID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFoundf("session %q not found", publicID)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.BackendError, "lookup session", err)
	}
	return id, nil
}

// CreateTask inserts a new Task for sessionPublicID.
func (s *Storage) CreateTask(ctx context.Context, sessionPublicID, title string) (*acp.Task, error) {
	t := &acp.Task{PublicID: ids.NewPublicID(), Title: title, Status: acp.TaskPending}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		t.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (public_id, session_internal_id, title, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`, t.PublicID, sid, t.Title, string(t.Status), now, now)
		if err != nil {
			return mapConstraintErr("create task", err)
		}
		t.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	t.CreatedAt, t.UpdatedAt = timeFromMillis(now), timeFromMillis(now)
	return t, nil
}

// UpdateTaskStatus transitions a task's status.
func (s *Storage) UpdateTaskStatus(ctx context.Context, taskPublicID string, status acp.TaskStatus) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE public_id = ?`,
			string(status), nowMillis(), taskPublicID)
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "update task status", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.NotFoundf("task %q not found", taskPublicID)
		}
		return nil
	})
}

// ListTasks returns every task for a session.
func (s *Storage) ListTasks(ctx context.Context, sessionPublicID string) ([]*acp.Task, error) {
	sid, err := s.sessionInternalIDRead(ctx, sessionPublicID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT public_id, title, status, created_at, updated_at FROM tasks
		WHERE session_internal_id = ? ORDER BY created_at ASC`, sid)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "list tasks", err)
	}
	defer rows.Close()

	var out []*acp.Task
	for rows.Next() {
		var (
			t               acp.Task
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&t.PublicID, &t.Title, &t.Status, &createdAt, &updatedAt); err != nil {
			return nil, apperr.Wrap(apperr.BackendError, "list tasks: scan", err)
		}
		t.SessionID = sid
		t.CreatedAt = timeFromMillis(createdAt)
		t.UpdatedAt = timeFromMillis(updatedAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Storage) sessionInternalIDRead(ctx context.Context, publicID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT internal_id FROM sessions WHERE public_id = ?`, publicID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFoundf("session %q not found", publicID)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.BackendError, "lookup session", err)
	}
	return id, nil
}

// CreateIntentSnapshot records the inferred user goal at a point in time.
func (s *Storage) CreateIntentSnapshot(ctx context.Context, sessionPublicID, summary string) (*acp.IntentSnapshot, error) {
	snap := &acp.IntentSnapshot{PublicID: ids.NewPublicID(), Summary: summary}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		snap.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO intent_snapshots (public_id, session_internal_id, summary, created_at)
			VALUES (?, ?, ?, ?)`, snap.PublicID, sid, snap.Summary, now)
		if err != nil {
			return mapConstraintErr("create intent snapshot", err)
		}
		snap.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	snap.CreatedAt = timeFromMillis(now)
	return snap, nil
}

// LatestIntentSnapshot returns the most recently recorded intent snapshot
// for a session, or an apperr.NotFound if none has been recorded yet.
func (s *Storage) LatestIntentSnapshot(ctx context.Context, sessionPublicID string) (*acp.IntentSnapshot, error) {
	sid, err := s.sessionInternalIDRead(ctx, sessionPublicID)
	if err != nil {
		return nil, err
	}
	var (
		snap      acp.IntentSnapshot
		createdAt int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT public_id, summary, created_at FROM intent_snapshots
		WHERE session_internal_id = ? ORDER BY created_at DESC LIMIT 1`, sid).
		Scan(&snap.PublicID, &snap.Summary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("no intent snapshot recorded for session %q", sessionPublicID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.BackendError, "latest intent snapshot", err)
	}
	snap.SessionID = sid
	snap.CreatedAt = timeFromMillis(createdAt)
	return &snap, nil
}

// CreateProgress records a progress note, optionally against a task, and
// returns it. Its public id is a valid fork-point target per the data
// model's fork lineage contract.
func (s *Storage) CreateProgress(ctx context.Context, sessionPublicID string, taskInternalID *int64, note string) (*acp.Progress, error) {
	p := &acp.Progress{PublicID: ids.NewPublicID(), Note: note, TaskID: taskInternalID}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		p.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO progress (public_id, session_internal_id, task_internal_id, note, created_at)
			VALUES (?, ?, ?, ?, ?)`, p.PublicID, sid, taskInternalID, p.Note, now)
		if err != nil {
			return mapConstraintErr("create progress", err)
		}
		p.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	p.CreatedAt = timeFromMillis(now)
	return p, nil
}

// CreateDecision records a structured decision made during a turn.
func (s *Storage) CreateDecision(ctx context.Context, sessionPublicID, question, choice, rationale string) (*acp.Decision, error) {
	d := &acp.Decision{PublicID: ids.NewPublicID(), Question: question, Choice: choice, Rationale: rationale}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		d.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO decisions (public_id, session_internal_id, question, choice, rationale, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, d.PublicID, sid, d.Question, d.Choice, d.Rationale, now)
		if err != nil {
			return mapConstraintErr("create decision", err)
		}
		d.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	d.CreatedAt = timeFromMillis(now)
	return d, nil
}

// CreateArtifact records a named output produced during a session.
func (s *Storage) CreateArtifact(ctx context.Context, sessionPublicID, name, mediaType, location string) (*acp.Artifact, error) {
	a := &acp.Artifact{PublicID: ids.NewPublicID(), Name: name, MediaType: mediaType, Location: location}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		a.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (public_id, session_internal_id, name, media_type, location, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, a.PublicID, sid, a.Name, a.MediaType, a.Location, now)
		if err != nil {
			return mapConstraintErr("create artifact", err)
		}
		a.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	a.CreatedAt = timeFromMillis(now)
	return a, nil
}

// CreateDelegation records a child-session spawn for a piece of sub-work.
func (s *Storage) CreateDelegation(ctx context.Context, sessionPublicID, childSessionID, instructions string) (*acp.Delegation, error) {
	d := &acp.Delegation{PublicID: ids.NewPublicID(), ChildSessionID: childSessionID, Instructions: instructions}
	now := nowMillis()
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		sid, err := s.sessionInternalID(ctx, tx, sessionPublicID)
		if err != nil {
			return err
		}
		d.SessionID = sid
		res, err := tx.ExecContext(ctx, `
			INSERT INTO delegations (public_id, session_internal_id, child_session_id, instructions, created_at)
			VALUES (?, ?, ?, ?, ?)`, d.PublicID, sid, d.ChildSessionID, d.Instructions, now)
		if err != nil {
			return mapConstraintErr("create delegation", err)
		}
		d.InternalID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	d.CreatedAt = timeFromMillis(now)
	return d, nil
}
