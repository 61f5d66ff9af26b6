package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReaderOption configures a SnapshotReader.
type ReaderOption func(*SnapshotReader)

// WithStartTime drops snapshots before startTime.
func WithStartTime(startTime time.Time) ReaderOption {
	return func(r *SnapshotReader) {
		r.startTime = &startTime
	}
}

// WithEndTime drops snapshots after endTime.
func WithEndTime(endTime time.Time) ReaderOption {
	return func(r *SnapshotReader) {
		r.endTime = &endTime
	}
}

// WithTimeRange keeps only snapshots within [startTime, endTime].
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SnapshotReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SnapshotReader iterates over one session's snapshots in time order.
// It must be closed after use; each reader belongs to a single goroutine.
type SnapshotReader struct {
	session   Session
	startTime *time.Time
	endTime   *time.Time

	rows    *sql.Rows
	current Snapshot
	err     error
}

const selectSessionSnapshotsSQL = `
SELECT
    id,` + snapshotColumnsSQL + `
FROM snapshots
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`

// The bounds are read with plain column selects rather than MIN()/MAX():
// go-sqlite3 only converts DATETIME values for columns with a declared type,
// and aggregate expressions have none.
const selectSessionMinTimeSQL = `
SELECT timestamp
FROM snapshots
WHERE session_id = ?
ORDER BY timestamp
LIMIT 1`

const selectSessionMaxTimeSQL = `
SELECT timestamp
FROM snapshots
WHERE session_id = ?
ORDER BY timestamp DESC
LIMIT 1`

// ReadSession creates a reader over a session's snapshots, optionally
// restricted to a time range.
func (s *Store) ReadSession(sessionID int64, opts ...ReaderOption) (*SnapshotReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	session, err := s.Session(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %d: %w", sessionID, err)
	}

	r := SnapshotReader{session: *session}
	for _, opt := range opts {
		opt(&r)
	}

	if r.startTime == nil || r.endTime == nil {
		var minTime, maxTime time.Time
		err = db.QueryRow(selectSessionMinTimeSQL, sessionID).Scan(&minTime)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %d has no snapshots", sessionID)
		}
		if err != nil {
			return nil, fmt.Errorf("reading session start time: %w", err)
		}
		if err = db.QueryRow(selectSessionMaxTimeSQL, sessionID).Scan(&maxTime); err != nil {
			return nil, fmt.Errorf("reading session end time: %w", err)
		}
		if r.startTime == nil {
			r.startTime = &minTime
		}
		if r.endTime == nil {
			r.endTime = &maxTime
		}
	}

	rows, err := db.Query(selectSessionSnapshotsSQL, sessionID, r.startTime.UTC(), r.endTime.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}

	r.rows = rows
	return &r, nil
}

// Session returns the session the reader iterates over.
func (r *SnapshotReader) Session() Session {
	return r.session
}

// Next advances to the next snapshot.
func (r *SnapshotReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}

	var snap Snapshot
	if err := r.rows.Scan(snap.scanTargets()...); err != nil {
		r.err = fmt.Errorf("scanning snapshot: %w", err)
		return false
	}

	r.current = snap
	return true
}

// Current returns the snapshot at the reader position.
func (r *SnapshotReader) Current() *Snapshot {
	return &r.current
}

// Error returns any error that occurred during iteration.
func (r *SnapshotReader) Error() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the database resources.
func (r *SnapshotReader) Close() error {
	return r.rows.Close()
}
