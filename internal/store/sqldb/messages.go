package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// MessageStore implements store.MessageStore over SQL.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) LoadMessages(ctx context.Context, agentID int64) ([]providers.Message, error) {
	comp, err := s.LatestCompaction(ctx, agentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	afterID := int64(0)
	if comp != nil {
		afterID = comp.UpToMessageID
	}

	msgs, err := s.messagesAfter(ctx, agentID, afterID)
	if err != nil {
		return nil, err
	}

	if comp == nil {
		return msgs, nil
	}
	return store.BuildHistory(comp.Summary, msgs), nil
}

func (s *MessageStore) messagesAfter(ctx context.Context, agentID, afterID int64) ([]providers.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM messages WHERE agent_id = $1 AND id > $2 ORDER BY id ASC`,
		agentID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []providers.Message
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg providers.Message
		if err := json.Unmarshal(content, &msg); err != nil {
			return nil, fmt.Errorf("decode message content: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// SaveTurn appends a turn's messages inside one transaction, so a failure
// part-way through leaves the log exactly as it was.
func (s *MessageStore) SaveTurn(ctx context.Context, msgs []*store.Message) error {
	for _, msg := range msgs {
		if msg.SenderIdentityID != nil && msg.SenderAgentID != nil {
			return fmt.Errorf("save turn: sender identity and sender agent are mutually exclusive")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// queryRower is the single-row query surface shared by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertMessage(ctx context.Context, q queryRower, msg *store.Message) error {
	content, err := json.Marshal(msg.Msg)
	if err != nil {
		return fmt.Errorf("encode message content: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO messages (agent_id, role, content, sender_identity_id, sender_agent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.AgentID, msg.Msg.Role, content, msg.SenderIdentityID, msg.SenderAgentID, createdAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	msg.ID = id
	return nil
}

func (s *MessageStore) LatestCompaction(ctx context.Context, agentID int64) (*store.Compaction, error) {
	var c store.Compaction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, summary, up_to_message_id, created_at
		 FROM compactions WHERE agent_id = $1 ORDER BY id DESC LIMIT 1`,
		agentID,
	).Scan(&c.ID, &c.AgentID, &c.Summary, &c.UpToMessageID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load compaction: %w", err)
	}
	return &c, nil
}

func (s *MessageStore) SaveCompaction(ctx context.Context, agentID int64, summary string, upToMessageID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compactions (agent_id, summary, up_to_message_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		agentID, summary, upToMessageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save compaction: %w", err)
	}
	return nil
}

func (s *MessageStore) MessageIDAtOffset(ctx context.Context, agentID, afterID int64, offset int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE agent_id = $1 AND id > $2
		 ORDER BY id DESC LIMIT 1 OFFSET $3`,
		agentID, afterID, offset,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("message id at offset: %w", err)
	}
	return id, nil
}
