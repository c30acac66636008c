package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adjutant-ai/adjutant/internal/store"
)

// InterlocutorStore implements store.InterlocutorStore over SQL.
type InterlocutorStore struct {
	db *sql.DB
}

func NewInterlocutorStore(db *sql.DB) *InterlocutorStore {
	return &InterlocutorStore{db: db}
}

func (s *InterlocutorStore) ResolveIdentity(ctx context.Context, service, identifier string) (*store.IdentityMatch, error) {
	var m store.IdentityMatch
	err := s.db.QueryRowContext(ctx,
		`SELECT ids.id, i.id, i.display_name, i.owner, i.assigned_agent_id
		 FROM identities ids
		 JOIN interlocutors i ON i.id = ids.interlocutor_id
		 WHERE ids.service = $1 AND ids.identifier = $2 AND i.enabled`,
		service, identifier,
	).Scan(&m.IdentityID, &m.InterlocutorID, &m.DisplayName, &m.Owner, &m.AssignedAgentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity %s/%s: %w", service, identifier, err)
	}
	return &m, nil
}

func (s *InterlocutorStore) OwnerIdentities(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ids.id, ids.interlocutor_id, ids.service, ids.identifier
		 FROM identities ids
		 JOIN interlocutors i ON i.id = ids.interlocutor_id
		 WHERE i.owner AND ids.identifier IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("load owner identities: %w", err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		var id store.Identity
		if err := rows.Scan(&id.ID, &id.InterlocutorID, &id.Service, &id.Identifier); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *InterlocutorStore) EnsureOwner(ctx context.Context, displayName string, identities []store.Identity) error {
	var ownerID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM interlocutors WHERE owner`).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO interlocutors (display_name, owner, enabled, assigned_agent_id)
			 VALUES ($1, TRUE, TRUE, $2) RETURNING id`,
			displayName, store.MainAgentID,
		).Scan(&ownerID)
	}
	if err != nil {
		return fmt.Errorf("ensure owner interlocutor: %w", err)
	}

	for _, ident := range identities {
		if ident.Identifier == nil {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO identities (interlocutor_id, service, identifier)
			 VALUES ($1, $2, $3) ON CONFLICT (service, identifier) DO NOTHING`,
			ownerID, ident.Service, *ident.Identifier,
		)
		if err != nil {
			return fmt.Errorf("ensure owner identity %s: %w", ident.Service, err)
		}
	}
	return nil
}
