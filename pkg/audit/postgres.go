package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes audit events to a Postgres table. Intended for
// multi-node deployments where a shared, queryable audit trail is needed.
type PostgresSink struct {
	pool *pgxpool.Pool
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS guardline_audit (
	id             BIGSERIAL PRIMARY KEY,
	recorded_at    TIMESTAMPTZ NOT NULL,
	kind           TEXT        NOT NULL,
	conversation_id TEXT,
	level          TEXT,
	crisis_type    TEXT,
	trigger_count  INT,
	blocked        BOOLEAN,
	triggers       TEXT[],
	violations     TEXT[]
)`

const insertAuditEvent = `
INSERT INTO guardline_audit
	(recorded_at, kind, conversation_id, level, crisis_type, trigger_count, blocked, triggers, violations)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// NewPostgresSink connects to Postgres and ensures the audit table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createAuditTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ensure audit table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Record inserts one event.
func (s *PostgresSink) Record(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	_, err := s.pool.Exec(ctx, insertAuditEvent,
		ev.Timestamp, string(ev.Kind), ev.ConversationID,
		ev.Level, ev.CrisisType, ev.TriggerCount, ev.Blocked,
		ev.Triggers, ev.Violations,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

var _ Sink = (*PostgresSink)(nil)
