package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// SessionRepository keeps the per-session retrieval strategy assignment.
// The insert-or-ignore write makes the first writer win, so concurrent
// first queries on one session converge on a single strategy.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	assigned_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_history (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_history_user_chat ON chat_history(user_id, chat_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (domain.StrategyName, bool, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT strategy FROM sessions WHERE session_id = $1
`, sessionID)

	var strategy string
	if err := row.Scan(&strategy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select session: %w", err)
	}
	return domain.StrategyName(strategy), true, nil
}

func (r *SessionRepository) PutIfAbsent(ctx context.Context, sessionID string, strategy domain.StrategyName) (domain.StrategyName, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, strategy, assigned_at)
VALUES ($1, $2, $3)
ON CONFLICT (session_id) DO NOTHING
`, sessionID, string(strategy), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	// Read back so a racing writer's assignment wins for everyone.
	row := r.db.QueryRowContext(ctx, `
SELECT strategy FROM sessions WHERE session_id = $1
`, sessionID)
	var winner string
	if err := row.Scan(&winner); err != nil {
		return "", fmt.Errorf("read back session: %w", err)
	}
	return domain.StrategyName(winner), nil
}
