//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLogger writes events to the audit_events table of the main SQLite
// database.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger shares an already-migrated database handle.
func NewSQLiteLogger(db *sql.DB) *SQLiteLogger {
	return &SQLiteLogger{db: db}
}

func (s *SQLiteLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	stamp(event)

	var changes sql.NullString
	if event.Changes != nil {
		if data, err := json.Marshal(event.Changes); err == nil {
			changes = sql.NullString{String: string(data), Valid: true}
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, action, resource_type, resource_id, client_id, changes, request_id, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC().Format(timeLayout), event.Actor, event.Action,
		event.ResourceType, event.ResourceID, event.ClientID, changes,
		event.RequestID, event.Outcome, event.Error,
	)
	return err
}

func (s *SQLiteLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	opts.normalize()
	where, args := "1=1", []any{}
	add := func(clause string, v any) {
		where += " AND " + clause
		args = append(args, v)
	}
	if opts.Actor != "" {
		add("actor = ?", opts.Actor)
	}
	if opts.Action != "" {
		add("action = ?", opts.Action)
	}
	if opts.ResourceType != "" {
		add("resource_type = ?", opts.ResourceType)
	}
	if opts.ClientID != "" {
		add("client_id = ?", opts.ClientID)
	}
	if opts.Since != nil {
		add("timestamp >= ?", opts.Since.UTC().Format(timeLayout))
	}
	if opts.Until != nil {
		add("timestamp <= ?", opts.Until.UTC().Format(timeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, selectEvents+" WHERE "+where+" ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?",
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events, err := scanSQLiteEvents(rows)
	return events, total, err
}

func (s *SQLiteLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+` WHERE resource_type = ? AND resource_id = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT 1000`, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteEvents(rows)
}

const selectEvents = `SELECT id, timestamp, actor, action, resource_type, resource_id, client_id, changes, request_id, outcome, error FROM audit_events`

func scanSQLiteEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var e Event
		var ts string
		var changes sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.ClientID, &changes, &e.RequestID, &e.Outcome, &e.Error); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(timeLayout, ts)
		if changes.Valid && changes.String != "" {
			var c Changes
			if err := json.Unmarshal([]byte(changes.String), &c); err == nil {
				e.Changes = &c
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
