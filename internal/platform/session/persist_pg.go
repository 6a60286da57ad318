package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionTableDDL = `
CREATE TABLE IF NOT EXISTS console_session (
	id          TEXT PRIMARY KEY,
	token       TEXT NOT NULL,
	user_data   JSONB NOT NULL,
	expires_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PGPersister stores sessions in Postgres so several console replicas can
// share them.
type PGPersister struct {
	pool *pgxpool.Pool
}

func NewPGPersister(pool *pgxpool.Pool) *PGPersister {
	return &PGPersister{pool: pool}
}

// Migrate creates the session table if it does not exist.
func (p *PGPersister) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, sessionTableDDL); err != nil {
		return fmt.Errorf("create console_session: %w", err)
	}
	return nil
}

func (p *PGPersister) LoadAll(ctx context.Context) ([]*Session, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, token, user_data, expires_at, created_at FROM console_session ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PGPersister) Save(ctx context.Context, s *Session) error {
	userData, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	var expires *time.Time
	if !s.ExpiresAt.IsZero() {
		expires = &s.ExpiresAt
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO console_session (id, token, user_data, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET token = EXCLUDED.token, user_data = EXCLUDED.user_data, expires_at = EXCLUDED.expires_at`,
		s.ID, s.Token, userData, expires, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PGPersister) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM console_session WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes rows whose token expired before now.
func (p *PGPersister) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM console_session WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s        Session
		userData []byte
		expires  *time.Time
	)
	if err := row.Scan(&s.ID, &s.Token, &userData, &expires, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal(userData, &s.User); err != nil {
		return nil, fmt.Errorf("decode session %s user: %w", s.ID, err)
	}
	if expires != nil {
		s.ExpiresAt = *expires
	}
	return &s, nil
}
