package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/ids"
)

// LLMParams is the provider-agnostic parameter bag (system prompts,
// temperature, etc.) that, together with provider and model, content-
// addresses an LLMConfig row.
type LLMParams struct {
	Provider string
	Model    string
	Params   map[string]any
}

// contentHash canonicalizes params (sorted keys) so that two semantically
// identical LLMParams values always hash the same regardless of map
// iteration order.
func (p LLMParams) contentHash() (string, error) {
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		K string
		V any
	}, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, struct {
			K string
			V any
		}{k, p.Params[k]})
	}

	canon := struct {
		Provider string
		Model    string
		Params   any
	}{p.Provider, p.Model, ordered}

	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	return ids.HashBytes(b).String(), nil
}

// CreateOrGetLLMConfig is idempotent: two calls with equal LLMParams return
// the same config id, relying on the content_hash UNIQUE constraint plus an
// INSERT-then-fallback-SELECT to survive the race between two concurrent
// first-writers.
func (s *Storage) CreateOrGetLLMConfig(ctx context.Context, params LLMParams) (int64, error) {
	hash, err := params.contentHash()
	if err != nil {
		return 0, apperr.Wrap(apperr.SerializationError, "hash llm params", err)
	}
	paramsJSON, err := json.Marshal(params.Params)
	if err != nil {
		return 0, apperr.Wrap(apperr.SerializationError, "marshal llm params", err)
	}

	var id int64
	err = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id FROM llm_configs WHERE content_hash = ?`, hash)
		if err := row.Scan(&id); err == nil {
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return apperr.Wrap(apperr.BackendError, "lookup llm config", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO llm_configs (content_hash, provider, model, params_json) VALUES (?, ?, ?, ?)`,
			hash, params.Provider, params.Model, paramsJSON)
		if err != nil {
			// Lost the race to another writer between the SELECT and this
			// INSERT; fall back to the row they created.
			row := tx.QueryRowContext(ctx, `SELECT id FROM llm_configs WHERE content_hash = ?`, hash)
			if scanErr := row.Scan(&id); scanErr == nil {
				return nil
			}
			return mapConstraintErr("create llm config", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.BackendError, "create llm config: read rowid", err)
		}
		return nil
	})
	return id, err
}

// GetLLMConfig retrieves an LLMConfig row by id.
func (s *Storage) GetLLMConfig(ctx context.Context, id int64) (*LLMParams, error) {
	var (
		provider, model string
		paramsJSON      []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT provider, model, params_json FROM llm_configs WHERE id = ?`, id).
		Scan(&provider, &model, &paramsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("llm config %d not found", id)
		}
		return nil, apperr.Wrap(apperr.BackendError, "get llm config", err)
	}
	var params map[string]any
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return nil, apperr.Wrap(apperr.SerializationError, "unmarshal llm params", err)
	}
	return &LLMParams{Provider: provider, Model: model, Params: params}, nil
}
