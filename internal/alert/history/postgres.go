package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "crisis-alerts/internal/common/errors"
)

const tableName = "alert_dispatches"

const schema = `
CREATE TABLE IF NOT EXISTS alert_dispatches (
	id              TEXT PRIMARY KEY,
	dispatched_at   TIMESTAMPTZ NOT NULL,
	crisis_type     TEXT NOT NULL,
	region_name     TEXT NOT NULL,
	severity        TEXT NOT NULL,
	recipient_email TEXT NOT NULL,
	email_sent      BOOLEAN NOT NULL,
	sms_requested   BOOLEAN NOT NULL,
	sms_sent        BOOLEAN NOT NULL,
	sms_configured  BOOLEAN NOT NULL,
	sms_error       TEXT NOT NULL DEFAULT '',
	phone_count     INTEGER NOT NULL DEFAULT 0,
	failed_phones   JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS alert_dispatches_dispatched_at_idx ON alert_dispatches (dispatched_at DESC);`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewQueryExecutionFailedError("create_schema", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	failed, err := json.Marshal(rec.FailedPhones)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(tableName, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_dispatches (
			id, dispatched_at, crisis_type, region_name, severity, recipient_email,
			email_sent, sms_requested, sms_sent, sms_configured, sms_error, phone_count, failed_phones
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID,
		rec.DispatchedAt,
		string(rec.CrisisType),
		rec.RegionName,
		string(rec.Severity),
		rec.RecipientEmail,
		rec.EmailSent,
		rec.SMSRequested,
		rec.SMSSent,
		rec.SMSConfigured,
		rec.SMSError,
		rec.PhoneCount,
		failed,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(tableName, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dispatched_at, crisis_type, region_name, severity, recipient_email,
			email_sent, sms_requested, sms_sent, sms_configured, sms_error, phone_count, failed_phones
		FROM alert_dispatches
		ORDER BY dispatched_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("recent_dispatches", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec    Record
			failed []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.DispatchedAt, &rec.CrisisType, &rec.RegionName, &rec.Severity, &rec.RecipientEmail,
			&rec.EmailSent, &rec.SMSRequested, &rec.SMSSent, &rec.SMSConfigured, &rec.SMSError, &rec.PhoneCount, &failed,
		); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("recent_dispatches", err)
		}
		if err := json.Unmarshal(failed, &rec.FailedPhones); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("recent_dispatches", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("recent_dispatches", err)
	}
	return records, nil
}
