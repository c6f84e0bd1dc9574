package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// MySQLSink is the MySQL-flavored twin of PostgresSink: same shape,
// different driver and placeholder syntax.
type MySQLSink struct {
	db    *sql.DB
	table string
}

// NewMySQLSink opens a connection pool against dsn and ensures the
// audit table exists. The table name defaults to "sutra_audit_log".
func NewMySQLSink(dsn, table string) (*MySQLSink, error) {
	if table == "" {
		table = "sutra_audit_log"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, sterr.Wrap(sterr.IoError, "audit: failed to open mysql connection", err)
	}
	sink := &MySQLSink{db: db, table: table}
	if err := sink.ensureTable(); err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *MySQLSink) ensureTable() error {
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"id BIGINT AUTO_INCREMENT PRIMARY KEY,\n"+
		"record_id CHAR(36) NOT NULL,\n"+
		"namespace VARCHAR(255) NOT NULL,\n"+
		"sequence BIGINT NOT NULL,\n"+
		"kind VARCHAR(64) NOT NULL,\n"+
		"concept_id VARCHAR(64),\n"+
		"detail TEXT,\n"+
		"applied_at DATETIME NOT NULL\n"+
		")", s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return sterr.Wrap(sterr.IoError, "audit: failed to create mysql table", err)
	}
	return nil
}

func (s *MySQLSink) Write(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (record_id, namespace, sequence, kind, concept_id, detail, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, query, rec.RecordID, rec.Namespace, rec.Sequence, rec.Kind, rec.ConceptID, rec.Detail, rec.AppliedAt)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "audit: mysql insert failed", err)
	}
	return nil
}

func (s *MySQLSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*MySQLSink)(nil)
