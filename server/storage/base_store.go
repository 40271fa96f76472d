package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// BaseStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders and converted for PostgreSQL.
type BaseStore struct {
	db      *sql.DB
	dialect Dialect
	// appendMu serializes writers so snapshot ids follow append order.
	appendMu sync.Mutex
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect being used.
func (s *BaseStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *BaseStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BaseStore) query(q string) string {
	if s.dialect.Name() == "postgres" {
		return ConvertPlaceholders(q)
	}
	return q
}

func (s *BaseStore) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.query(query), args...)
}

// initSchema creates the tables and records the layout version.
func (s *BaseStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, expandSchema(schemaTemplate, s.dialect)); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	_, err := s.execContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`,
		schemaVersion, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// AppendSnapshot stores snap and assigns its id.
func (s *BaseStore) AppendSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	var id int64
	err = s.queryRowContext(ctx,
		`INSERT INTO snapshots (taken_at, device_count, schema_version, payload) VALUES (?, ?, ?, ?) RETURNING id`,
		snap.Timestamp.UnixNano(), len(snap.Devices), PayloadSchemaVersion, payload,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snap.ID = id
	logInfo("snapshot stored", "id", id, "devices", len(snap.Devices))
	return nil
}

// LatestSnapshot returns the snapshot with the highest id.
func (s *BaseStore) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	list, err := s.ListSnapshots(ctx, SnapshotFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// GetSnapshot returns the snapshot with the given id.
func (s *BaseStore) GetSnapshot(ctx context.Context, id int64) (*model.Snapshot, error) {
	row := s.queryRowContext(ctx,
		`SELECT id, taken_at, payload FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

// ListSnapshots returns snapshots in the filter's time range, newest first.
func (s *BaseStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*model.Snapshot, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.Since.IsZero() {
		where = append(where, "taken_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "taken_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}
	q := `SELECT id, taken_at, payload FROM snapshots`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC " + s.dialect.LimitClause(filter.Limit)

	rows, err := s.queryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(r rowScanner) (*model.Snapshot, error) {
	var (
		id      int64
		takenAt int64
		payload string
	)
	if err := r.Scan(&id, &takenAt, &payload); err != nil {
		return nil, err
	}
	devices, err := decodeSnapshot(payload)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", id, err)
	}
	return &model.Snapshot{ID: id, Timestamp: time.Unix(0, takenAt), Devices: devices}, nil
}

// AppendAlerts stores alerts in one transaction.
func (s *BaseStore) AppendAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt := s.query(`INSERT INTO alerts (alert_id, device_id, type, severity, created_at, payload) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, a.ID, a.DeviceID, a.Type, a.Severity, a.Timestamp.UnixNano(), string(payload)); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ListAlerts returns matching alerts newest first.
func (s *BaseStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	q := `SELECT payload FROM alerts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, seq DESC " + s.dialect.LimitClause(filter.Limit)

	rows, err := s.queryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a model.Alert
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
