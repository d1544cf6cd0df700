//go:build postgres

package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLogger writes events to the audit_events table through a shared
// pgx pool.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresLogger uses the main store's pool; it never closes it.
func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (s *PostgresLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	stamp(event)

	var changes *string
	if event.Changes != nil {
		if data, err := json.Marshal(event.Changes); err == nil {
			str := string(data)
			changes = &str
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, action, resource_type, resource_id, client_id, changes, request_id, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)`,
		event.ID, event.Timestamp, event.Actor, event.Action, event.ResourceType,
		event.ResourceID, event.ClientID, changes, event.RequestID, event.Outcome, event.Error,
	)
	return err
}

func (s *PostgresLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	opts.normalize()
	where, args := "TRUE", []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where += " AND " + clause + " $" + strconv.Itoa(len(args))
	}
	if opts.Actor != "" {
		add("actor =", opts.Actor)
	}
	if opts.Action != "" {
		add("action =", opts.Action)
	}
	if opts.ResourceType != "" {
		add("resource_type =", opts.ResourceType)
	}
	if opts.ClientID != "" {
		add("client_id =", opts.ClientID)
	}
	if opts.Since != nil {
		add("timestamp >=", *opts.Since)
	}
	if opts.Until != nil {
		add("timestamp <=", *opts.Until)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := pgSelectEvents + " WHERE " + where + " ORDER BY timestamp DESC, seq DESC LIMIT $" +
		strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	rows, err := s.pool.Query(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events, err := scanPgEvents(rows)
	return events, total, err
}

func (s *PostgresLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, pgSelectEvents+` WHERE resource_type = $1 AND resource_id = $2
		ORDER BY timestamp DESC, seq DESC LIMIT 1000`, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgEvents(rows)
}

const pgSelectEvents = `SELECT id, timestamp, actor, action, resource_type, resource_id, client_id, changes::text, request_id, outcome, error FROM audit_events`

func scanPgEvents(rows pgx.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var e Event
		var changes *string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.ClientID, &changes, &e.RequestID, &e.Outcome, &e.Error); err != nil {
			return nil, err
		}
		if changes != nil && *changes != "" {
			var c Changes
			if err := json.Unmarshal([]byte(*changes), &c); err == nil {
				e.Changes = &c
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
