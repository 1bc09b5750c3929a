package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listraksync/internal/models"
)

const failedRequestColumns = `id, method, endpoint, response, options, retry_count, last_retry_at, created_at, updated_at`

// Flush persists every buffered record of the batch in one transaction and
// empties it. A nil or empty batch is a no-op.
func (db *DB) Flush(ctx context.Context, batch *models.FailedRequestBatch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin flush: %v", models.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO failed_requests (`+failedRequestColumns+`)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                response = excluded.response,
                options = excluded.options,
                retry_count = excluded.retry_count,
                last_retry_at = excluded.last_retry_at,
                updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("%w: prepare flush: %v", models.ErrPersistence, err)
	}
	defer stmt.Close()

	for _, rec := range batch.Records() {
		options, err := json.Marshal(rec.Options)
		if err != nil {
			return fmt.Errorf("%w: encode options of %s: %v", models.ErrPersistence, rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.Method,
			rec.Endpoint,
			rec.Response,
			string(options),
			rec.RetryCount,
			rec.LastRetryAt,
			rec.CreatedAt,
			rec.UpdatedAt,
		); err != nil {
			return fmt.Errorf("%w: upsert failed request %s: %v", models.ErrPersistence, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit flush: %v", models.ErrPersistence, err)
	}

	db.logger.Debug().Int("records", batch.Len()).Msg("failed requests flushed")
	batch.Reset()
	return nil
}

// RemoveFailedRequest deletes a record after a successful retry.
func (db *DB) RemoveFailedRequest(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM failed_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: remove failed request %s: %v", models.ErrPersistence, id, err)
	}
	return nil
}

// RetryableFailedRequests returns every record still below the retry cap.
func (db *DB) RetryableFailedRequests(ctx context.Context) ([]models.FailedRequest, error) {
	query := `SELECT ` + failedRequestColumns + `
              FROM failed_requests
              WHERE retry_count < ?
              ORDER BY created_at ASC`
	return db.queryFailedRequests(ctx, query, models.MaxRetryCount)
}

// FailedRequests lists all records, exhausted ones included.
func (db *DB) FailedRequests(ctx context.Context) ([]models.FailedRequest, error) {
	query := `SELECT ` + failedRequestColumns + ` FROM failed_requests ORDER BY created_at ASC`
	return db.queryFailedRequests(ctx, query)
}

// GetFailedRequest returns a single record or sql.ErrNoRows.
func (db *DB) GetFailedRequest(ctx context.Context, id string) (*models.FailedRequest, error) {
	query := `SELECT ` + failedRequestColumns + ` FROM failed_requests WHERE id = ?`
	rec, err := scanFailedRequest(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get failed request %s: %v", models.ErrPersistence, id, err)
	}
	return rec, nil
}

// CountFailedRequests returns the number of retryable and exhausted records.
func (db *DB) CountFailedRequests(ctx context.Context) (retryable, exhausted int, err error) {
	query := `SELECT
                COALESCE(SUM(CASE WHEN retry_count < ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN retry_count >= ? THEN 1 ELSE 0 END), 0)
              FROM failed_requests`
	err = db.QueryRowContext(ctx, query, models.MaxRetryCount, models.MaxRetryCount).Scan(&retryable, &exhausted)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: count failed requests: %v", models.ErrPersistence, err)
	}
	return retryable, exhausted, nil
}

// IncrementFailedRequestRetry bumps retry_count by one, but only while the
// stored count still equals expected and is below the cap. It reports false
// when another writer got there first or the record is exhausted.
func (db *DB) IncrementFailedRequestRetry(ctx context.Context, id string, expected int, response string, at time.Time) (bool, error) {
	query := `UPDATE failed_requests
              SET retry_count = retry_count + 1, response = ?, last_retry_at = ?, updated_at = ?
              WHERE id = ? AND retry_count = ? AND retry_count < ?`
	res, err := db.ExecContext(ctx, query, response, at, at, id, expected, models.MaxRetryCount)
	if err != nil {
		return false, fmt.Errorf("%w: increment retry of %s: %v", models.ErrPersistence, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected for %s: %v", models.ErrPersistence, id, err)
	}
	return n == 1, nil
}

func (db *DB) queryFailedRequests(ctx context.Context, query string, args ...any) ([]models.FailedRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed requests: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	var out []models.FailedRequest
	for rows.Next() {
		rec, err := scanFailedRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan failed request: %v", models.ErrPersistence, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate failed requests: %v", models.ErrPersistence, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFailedRequest(row rowScanner) (*models.FailedRequest, error) {
	var (
		rec         models.FailedRequest
		response    sql.NullString
		options     sql.NullString
		lastRetryAt sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.Method, &rec.Endpoint, &response, &options, &rec.RetryCount, &lastRetryAt, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Response = response.String
	if lastRetryAt.Valid {
		t := lastRetryAt.Time
		rec.LastRetryAt = &t
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &rec.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	return &rec, nil
}
