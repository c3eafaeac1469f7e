package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liurenke/renkebot/internal/apperr"
)

// PostgresStore persists session histories in PostgreSQL. Each session
// row carries a sliding expiry deadline; an expired session reads as
// empty and its rows are replaced on the next append.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			session_id TEXT NOT NULL REFERENCES chat_sessions (session_id) ON DELETE CASCADE,
			ord BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, ord)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.role, m.content, m.created_at
		 FROM chat_messages m
		 JOIN chat_sessions s ON s.session_id = m.session_id
		 WHERE m.session_id = $1 AND s.expires_at > now()
		 ORDER BY m.ord`,
		sessionID,
	)
	if err != nil {
		return nil, apperr.StoreUnavailable(err, "postgres read for session %s", sessionID)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message for session %s: %w", sessionID, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreUnavailable(err, "postgres read for session %s", sessionID)
	}
	return msgs, nil
}

func (s *PostgresStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Drop rows from an expired incarnation of the session before
		// reusing the identifier.
		if _, err := tx.Exec(ctx,
			`DELETE FROM chat_sessions WHERE session_id = $1 AND expires_at <= now()`,
			sessionID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_sessions (session_id, expires_at)
			 VALUES ($1, now() + make_interval(secs => $2))
			 ON CONFLICT (session_id) DO UPDATE SET expires_at = now() + make_interval(secs => $2)`,
			sessionID, s.ttl.Seconds(),
		); err != nil {
			return err
		}

		var next int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(ord), 0) + 1 FROM chat_messages WHERE session_id = $1`,
			sessionID,
		).Scan(&next); err != nil {
			return err
		}

		for i, m := range msgs {
			created := m.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO chat_messages (session_id, ord, role, content, created_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				sessionID, next+int64(i), m.Role, m.Content, created,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.StoreUnavailable(err, "postgres append for session %s", sessionID)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperr.StoreUnavailable(err, "postgres ping")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
