// Package storage persists periodic rig snapshots to SQLite. Writes go
// through a WAL connection owned by the daemon; reads use a separate
// read-only connection so the web API and servotrace never block logging.
package storage

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store handles database operations.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the database at dbPath. Connections are opened
// lazily on first use.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// The write connection creates the schema; make sure it exists
		// before a reader opens the file read-only.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func closeWithError(c interface{ Close() error }, err *error) {
	if cErr := c.Close(); cErr != nil && *err == nil {
		*err = fmt.Errorf("closing: %w", cErr)
	}
}

const insertSessionSQL = `
INSERT INTO sessions (start_time,
                      controller_type,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

// CreateSession records the start of a daemon run and returns the session ID.
// config may be nil, a string, raw bytes or anything JSON-serializable.
func (s *Store) CreateSession(controllerType string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.Prepare(insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.Exec(controllerType, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

const updateSessionControllerSQL = `
UPDATE sessions
SET controller_type = ?
WHERE id = ?`

// SetSessionController records the controller type on an existing session.
// Sessions start before controller discovery completes, so the row begins
// as "none" and is amended once a pad attaches.
func (s *Store) SetSessionController(sessionID int64, controllerType string) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.Prepare(updateSessionControllerSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.Exec(controllerType, sessionID); err != nil {
		err = fmt.Errorf("updating session: %w", err)
	}
	return
}

const selectSessionSQL = `
SELECT
    id,
    start_time,
    controller_type,
    config
FROM sessions
WHERE
    id = ?`

// Session returns a session by its ID.
func (s *Store) Session(id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.Prepare(selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRow(id).Scan(&sess.ID, &sess.StartTime, &sess.ControllerType, &config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}

const snapshotColumnsSQL = `
    session_id,
    timestamp,
    angle_0, angle_1, angle_2, angle_3,
    direction_0, direction_1, direction_2, direction_3,
    hold_0, hold_1, hold_2, hold_3,
    locked,
    speed,
    accel_x, accel_y, accel_z,
    gyro_x, gyro_y, gyro_z,
    temperature,
    pca_connected,
    pca_bus,
    mpu_connected,
    mpu_bus,
    controller_connected,
    controller_type`

const insertSnapshotSQL = `
INSERT INTO snapshots (` + snapshotColumnsSQL + `)
VALUES `

const snapshotPlaceholderSQL = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// InsertSnapshot stores a single snapshot.
func (s *Store) InsertSnapshot(snap *Snapshot) (snapshotID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.Prepare(insertSnapshotSQL + snapshotPlaceholderSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.Exec(snap.columns()...)
	if err != nil {
		err = fmt.Errorf("inserting snapshot: %w", err)
		return
	}

	snapshotID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting snapshot ID: %w", err)
	}
	return
}

// BatchInsertSnapshots stores a batch of snapshots in a single transaction.
func (s *Store) BatchInsertSnapshots(snaps []Snapshot) (err error) {
	if len(snaps) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	values := make([]any, 0, len(snaps)*29)

	var sb strings.Builder
	sb.WriteString(insertSnapshotSQL)

	for i := range snaps {
		values = append(values, snaps[i].columns()...)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(snapshotPlaceholderSQL)
	}

	if _, err = tx.Exec(sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting snapshots: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const selectRecentSnapshotsSQL = `
SELECT
    id,` + snapshotColumnsSQL + `
FROM snapshots
ORDER BY id DESC
LIMIT ?`

// RecentSnapshots returns the latest snapshots, newest first.
func (s *Store) RecentSnapshots(limit int) (snaps []Snapshot, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.Query(selectRecentSnapshotsSQL, limit)
	if err != nil {
		err = fmt.Errorf("querying snapshots: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var snap Snapshot
		if err = rows.Scan(snap.scanTargets()...); err != nil {
			err = fmt.Errorf("scanning snapshot: %w", err)
			return
		}
		snaps = append(snaps, snap)
	}
	err = rows.Err()
	return
}

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_snapshots_session_time ON snapshots (session_id, timestamp);`

// Close releases both connections. Indexes are built on close so the write
// path stays cheap during collection.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
