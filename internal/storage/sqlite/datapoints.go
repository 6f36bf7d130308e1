package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unshub/internal/api"
	"unshub/internal/storage"
)

const upsertLatestSQL = `
INSERT INTO realtime_store (topic, value, timestamp, source, quality, metadata)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(topic) DO UPDATE SET
    value = excluded.value,
    timestamp = excluded.timestamp,
    source = excluded.source,
    quality = excluded.quality,
    metadata = excluded.metadata`

const insertHistoricalSQL = `
INSERT INTO historical_store (topic, value, timestamp, source, quality, metadata)
VALUES (?, ?, ?, ?, ?, ?)`

// datapointArgs renders a datapoint into the shared column order of
// realtime_store and historical_store.
func datapointArgs(dp api.DataPoint) ([]any, error) {
	value, err := encodeJSON(dp.Value)
	if err != nil {
		return nil, err
	}
	metadata, err := encodeJSON(dp.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{dp.Topic, value, timeToNanos(dp.Timestamp), dp.Source, dp.Quality, metadata}, nil
}

func scanDataPoint(scan func(...any) error) (api.DataPoint, error) {
	var (
		dp       api.DataPoint
		value    string
		nanos    int64
		metadata string
	)
	if err := scan(&dp.Topic, &value, &nanos, &dp.Source, &dp.Quality, &metadata); err != nil {
		return api.DataPoint{}, err
	}
	if err := decodeJSON(value, &dp.Value); err != nil {
		return api.DataPoint{}, err
	}
	if err := decodeJSON(metadata, &dp.Metadata); err != nil {
		return api.DataPoint{}, err
	}
	if len(dp.Metadata) == 0 {
		dp.Metadata = nil
	}
	dp.Timestamp = nanosToTime(nanos)
	return dp, nil
}

type realtimeStore struct {
	db *sql.DB
}

func (s *realtimeStore) Store(ctx context.Context, dp api.DataPoint) error {
	args, err := datapointArgs(dp)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertLatestSQL, args...); err != nil {
		return fmt.Errorf("failed to store latest value: %w", err)
	}
	return nil
}

func (s *realtimeStore) StoreBatch(ctx context.Context, dps []api.DataPoint) error {
	if len(dps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertLatestSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, dp := range dps {
		args, err := datapointArgs(dp)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to store latest value for %s: %w", dp.Topic, err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recent datapoint for the topic. Values round-trip
// through JSON, so numeric values come back as float64.
func (s *realtimeStore) Latest(ctx context.Context, topic string) (api.DataPoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT topic, value, timestamp, source, quality, metadata
		FROM realtime_store WHERE topic = ?`, topic)
	dp, err := scanDataPoint(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return api.DataPoint{}, fmt.Errorf("latest value for topic %q: %w", topic, storage.ErrNotFound)
	}
	if err != nil {
		return api.DataPoint{}, fmt.Errorf("failed to read latest value: %w", err)
	}
	return dp, nil
}

func (s *realtimeStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM realtime_store`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count topics: %w", err)
	}
	return count, nil
}

func (s *realtimeStore) CleanupOldData(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM realtime_store WHERE timestamp < ?`, timeToNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up realtime data: %w", err)
	}
	return res.RowsAffected()
}

type historicalStore struct {
	db *sql.DB
}

func (s *historicalStore) Store(ctx context.Context, dp api.DataPoint) error {
	args, err := datapointArgs(dp)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertHistoricalSQL, args...); err != nil {
		return fmt.Errorf("failed to append datapoint: %w", err)
	}
	return nil
}

func (s *historicalStore) StoreBatch(ctx context.Context, dps []api.DataPoint) error {
	if len(dps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertHistoricalSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, dp := range dps {
		args, err := datapointArgs(dp)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to append datapoint for %s: %w", dp.Topic, err)
		}
	}
	return tx.Commit()
}

func (s *historicalStore) Query(ctx context.Context, topic string, from, to time.Time) ([]api.DataPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, value, timestamp, source, quality, metadata
		FROM historical_store
		WHERE topic = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, topic, timeToNanos(from), timeToNanos(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.DataPoint
	for rows.Next() {
		dp, err := scanDataPoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		results = append(results, dp)
	}
	return results, rows.Err()
}

// Archive moves rows older than cutoff into historical_archive. Copy and
// delete run in one transaction so rows are never lost or duplicated.
func (s *historicalStore) Archive(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nanos := timeToNanos(cutoff)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO historical_archive (topic, value, timestamp, source, quality, metadata)
		SELECT topic, value, timestamp, source, quality, metadata
		FROM historical_store WHERE timestamp < ?`, nanos)
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into archive: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_store WHERE timestamp < ?`, nanos); err != nil {
		return 0, fmt.Errorf("failed to delete archived rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archive: %w", err)
	}
	return moved, nil
}
