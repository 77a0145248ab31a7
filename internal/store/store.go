// Package store persists the transform history as an append-only log keyed
// by the content fingerprint of the submitted document. Rows are inserted
// once per terminal result and never updated in place.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/scanforge/scanforge/api/schemas"
)

// DBPool abstracts pgxpool.Pool to allow mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides the PostgreSQL implementation of schemas.HistoryStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlAppendResult = `
    INSERT INTO transform_history (id, fingerprint, status, attempt_count, report, guidance, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7);
`

// AppendResult inserts one terminal result. There is deliberately no ON
// CONFLICT clause: the log is append-only and every submission gets its own
// row, repeated fingerprints included.
func (s *Store) AppendResult(ctx context.Context, rec schemas.HistoryRecord) error {
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal compliance report: %w", err)
	}

	var guidance []byte
	if rec.Guidance != nil {
		guidance, err = json.Marshal(rec.Guidance)
		if err != nil {
			return fmt.Errorf("failed to marshal guidance payload: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, sqlAppendResult,
		rec.ID, rec.Fingerprint, string(rec.Status), rec.AttemptCount,
		report, guidance, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("unexpected rows affected on history insert: %d", tag.RowsAffected())
	}

	s.log.Debug("History row appended.",
		zap.String("fingerprint", rec.Fingerprint),
		zap.String("status", string(rec.Status)))
	return nil
}

const sqlGetByFingerprint = `
    SELECT id, fingerprint, status, attempt_count, report, guidance, created_at
    FROM transform_history
    WHERE fingerprint = $1
    ORDER BY created_at ASC;
`

// GetByFingerprint replays every recorded result for a document fingerprint,
// oldest first.
func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) ([]schemas.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, sqlGetByFingerprint, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query transform history: %w", err)
	}
	defer rows.Close()

	var records []schemas.HistoryRecord
	for rows.Next() {
		var rec schemas.HistoryRecord
		var status string
		var report, guidance []byte

		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &status, &rec.AttemptCount, &report, &guidance, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		rec.Status = schemas.ResultStatus(status)
		if err := json.Unmarshal(report, &rec.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal compliance report: %w", err)
		}
		if len(guidance) > 0 {
			rec.Guidance = &schemas.GuidancePayload{}
			if err := json.Unmarshal(guidance, rec.Guidance); err != nil {
				return nil, fmt.Errorf("failed to unmarshal guidance payload: %w", err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
