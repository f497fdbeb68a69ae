package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

// Postgres implements Store over the principals table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindByID(ctx context.Context, principalID id.PrincipalID) (*Principal, error) {
	var (
		p             Principal
		principalUUID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, display_name, active, created_at
		FROM principals
		WHERE id = $1`,
		uuid.UUID(principalID),
	).Scan(&principalUUID, &p.Type, &p.DisplayName, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	p.ID = id.PrincipalID(principalUUID)
	return &p, nil
}

func (s *Postgres) Put(ctx context.Context, p *Principal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, type, display_name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			display_name = EXCLUDED.display_name,
			active = EXCLUDED.active`,
		uuid.UUID(p.ID), p.Type, p.DisplayName, p.Active, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert principal: %w", err)
	}
	return nil
}

func (s *Postgres) Deactivate(ctx context.Context, principalID id.PrincipalID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE principals SET active = false WHERE id = $1`,
		uuid.UUID(principalID),
	)
	if err != nil {
		return fmt.Errorf("deactivate principal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
