package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adjutant-ai/adjutant/internal/store"
)

// AgentStore implements store.AgentStore over SQL.
type AgentStore struct {
	db *sql.DB
}

func NewAgentStore(db *sql.DB) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) GetAgent(ctx context.Context, id int64) (*store.Agent, error) {
	var (
		a     store.Agent
		tools []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, system_prompt_fragment, allowed_tools, created_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.SystemPromptFragment, &tools, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %d: %w", id, err)
	}
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &a.AllowedTools); err != nil {
			return nil, fmt.Errorf("decode allowed tools: %w", err)
		}
	}
	return &a, nil
}

func (s *AgentStore) AgentName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM agents WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load agent name %d: %w", id, err)
	}
	return name, nil
}

func (s *AgentStore) EnsureAgent(ctx context.Context, agent *store.Agent) error {
	tools, err := json.Marshal(agent.AllowedTools)
	if err != nil {
		return fmt.Errorf("encode allowed tools: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, system_prompt_fragment, allowed_tools, created_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		agent.ID, agent.Name, agent.SystemPromptFragment, tools, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensure agent %d: %w", agent.ID, err)
	}
	return nil
}
