//go:build sqlite

// Package sqlite is the SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements storage.Store and storage.RecommendationStore.
type Store struct {
	db *sql.DB
}

var (
	_ storage.Store               = (*Store)(nil)
	_ storage.RecommendationStore = (*Store)(nil)
	_ storage.HealthCheck         = (*Store)(nil)
)

// New opens dsn, applies pending migrations and returns the store.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// PRAGMAs below are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the handle so the audit logger can share it.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Clients

const clientColumns = `id, name, email, avatar, status, practitioner, join_date`

func scanClient(row scanner) (domain.Client, error) {
	var c domain.Client
	var joined string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Avatar, &c.Status, &c.Practitioner, &joined); err != nil {
		return domain.Client{}, err
	}
	c.JoinDate = parseTime(joined)
	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	if err := c.Validate(); err != nil {
		return domain.Client{}, storage.Invalid(err)
	}
	c.ID = newID(c.ID)
	if c.JoinDate.IsZero() {
		c.JoinDate = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.ClientStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Avatar, string(c.Status), c.Practitioner, formatTime(c.JoinDate))
	if err != nil {
		return domain.Client{}, storage.WrapIfConflict(err)
	}
	return c, nil
}

// Goals

const goalColumns = `id, client_id, title, description, category, status, progress, target_date, created_at`

func scanGoal(row scanner) (domain.Goal, error) {
	var g domain.Goal
	var target sql.NullString
	var created string
	if err := row.Scan(&g.ID, &g.ClientID, &g.Title, &g.Description, &g.Category, &g.Status, &g.Progress, &target, &created); err != nil {
		return domain.Goal{}, err
	}
	if target.Valid {
		t := parseTime(target.String)
		g.TargetDate = &t
	}
	g.CreatedAt = parseTime(created)
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals`
	var args []any
	if clientID != "" {
		q += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g domain.Goal) (domain.Goal, error) {
	if err := g.Validate(); err != nil {
		return domain.Goal{}, storage.Invalid(err)
	}
	g.ID = newID(g.ID)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	var target *string
	if g.TargetDate != nil {
		t := formatTime(*g.TargetDate)
		target = &t
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ClientID, g.Title, g.Description, g.Category, string(g.Status), g.Progress, target, formatTime(g.CreatedAt))
	if err != nil {
		return domain.Goal{}, storage.WrapIfConflict(err)
	}
	return g, nil
}

func (s *Store) UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (*domain.Goal, error) {
	if err := patch.Validate(); err != nil {
		return nil, storage.Invalid(err)
	}
	current, err := s.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	g := patch.Apply(*current)
	if _, err := s.db.ExecContext(ctx, `UPDATE goals SET status = ?, progress = ? WHERE id = ?`, string(g.Status), g.Progress, id); err != nil {
		return nil, storage.WrapIfConflict(err)
	}
	return &g, nil
}

// Resources

const resourceColumns = `id, title, category, type, difficulty, description, media_url, duration, read_time, downloadable, created_at`

func scanResource(row scanner) (domain.Resource, error) {
	var r domain.Resource
	var created string
	if err := row.Scan(&r.ID, &r.Title, &r.Category, &r.Type, &r.Difficulty, &r.Description, &r.MediaURL, &r.Duration, &r.ReadTime, &r.Downloadable, &created); err != nil {
		return domain.Resource{}, err
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

func (s *Store) ListResources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	r, err := scanResource(s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	if err := r.Validate(); err != nil {
		return domain.Resource{}, storage.Invalid(err)
	}
	r.ID = newID(r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Category, string(r.Type), string(r.Difficulty), r.Description, r.MediaURL,
		r.Duration, r.ReadTime, r.Downloadable, formatTime(r.CreatedAt))
	if err != nil {
		return domain.Resource{}, storage.WrapIfConflict(err)
	}
	return r, nil
}

// Interactions

func (s *Store) ListInteractions(ctx context.Context, clientID string) ([]domain.Interaction, error) {
	q := `SELECT id, client_id, resource_id, type, timestamp FROM interactions`
	var args []any
	if clientID != "" {
		q += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY timestamp DESC, rowid ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Interaction{}
	for rows.Next() {
		var i domain.Interaction
		var ts string
		if err := rows.Scan(&i.ID, &i.ClientID, &i.ResourceID, &i.Type, &ts); err != nil {
			return nil, err
		}
		i.Timestamp = parseTime(ts)
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) CreateInteraction(ctx context.Context, i domain.Interaction) (domain.Interaction, error) {
	if err := i.Validate(); err != nil {
		return domain.Interaction{}, storage.Invalid(err)
	}
	i.ID = newID(i.ID)
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, client_id, resource_id, type, timestamp) VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.ClientID, i.ResourceID, string(i.Type), formatTime(i.Timestamp))
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("create interaction: %w", storage.WrapIfConflict(err))
	}
	return i, nil
}
