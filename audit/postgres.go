package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// PostgresSink writes Records to a single append-only table via
// lib/pq. It is intentionally minimal — one INSERT per record — since
// the write path never waits on it.
type PostgresSink struct {
	db    *sql.DB
	table string
}

// NewPostgresSink opens a connection pool against dsn and ensures the
// audit table exists. The table name defaults to "sutra_audit_log".
func NewPostgresSink(dsn, table string) (*PostgresSink, error) {
	if table == "" {
		table = "sutra_audit_log"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, sterr.Wrap(sterr.IoError, "audit: failed to open postgres connection", err)
	}
	sink := &PostgresSink{db: db, table: table}
	if err := sink.ensureTable(); err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *PostgresSink) ensureTable() error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		record_id UUID NOT NULL,
		namespace TEXT NOT NULL,
		sequence BIGINT NOT NULL,
		kind TEXT NOT NULL,
		concept_id TEXT,
		detail TEXT,
		applied_at TIMESTAMPTZ NOT NULL
	)`, s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return sterr.Wrap(sterr.IoError, "audit: failed to create postgres table", err)
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (record_id, namespace, sequence, kind, concept_id, detail, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
	_, err := s.db.ExecContext(ctx, query, rec.RecordID, rec.Namespace, rec.Sequence, rec.Kind, rec.ConceptID, rec.Detail, rec.AppliedAt)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "audit: postgres insert failed", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*PostgresSink)(nil)
