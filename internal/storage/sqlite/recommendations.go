//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

const recommendationColumns = `id, client_id, resource_id, goal_id, score, recommendation_date, accepted`

// CreateRecommendation persists a new recommendation.
func (s *Store) CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if err := rec.Validate(); err != nil {
		return domain.Recommendation{}, storage.Invalid(err)
	}
	rec.ID = newID(rec.ID)
	if rec.RecommendationDate.IsZero() {
		rec.RecommendationDate = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recommendations (`+recommendationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ClientID, rec.ResourceID, rec.GoalID, rec.Score, formatTime(rec.RecommendationDate), rec.Accepted,
	)
	if err != nil {
		return domain.Recommendation{}, storage.WrapIfConflict(err)
	}
	return rec, nil
}

// GetRecommendation returns a single recommendation by ID.
func (s *Store) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)
	r, err := scanRecommendation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ListRecommendations returns recommendations matching the filters.
func (s *Store) ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, error) {
	var where []string
	var args []any

	if filters.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filters.ClientID)
	}
	switch filters.Status {
	case domain.DispositionPending:
		where = append(where, "accepted IS NULL")
	case domain.DispositionAccepted:
		where = append(where, "accepted = 1")
	case domain.DispositionDeclined:
		where = append(where, "accepted = 0")
	}

	query := `SELECT ` + recommendationColumns + ` FROM recommendations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch filters.OrderBy {
	case domain.OrderByScore:
		query += " ORDER BY score DESC, rowid ASC"
	default:
		query += " ORDER BY recommendation_date DESC, rowid ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Recommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRecommendation merges patch into the stored row inside a transaction.
func (s *Store) UpdateRecommendation(ctx context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error) {
	if err := patch.Validate(); err != nil {
		return nil, storage.Invalid(err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanRecommendation(tx.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	r := patch.Apply(current)
	_, err = tx.ExecContext(ctx,
		`UPDATE recommendations SET client_id = ?, resource_id = ?, goal_id = ?, score = ?, recommendation_date = ?, accepted = ? WHERE id = ?`,
		r.ClientID, r.ResourceID, r.GoalID, r.Score, formatTime(r.RecommendationDate), r.Accepted, id,
	)
	if err != nil {
		return nil, storage.WrapIfConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecommendation removes a recommendation permanently.
func (s *Store) DeleteRecommendation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRecommendation(row scanner) (domain.Recommendation, error) {
	var r domain.Recommendation
	var goalID sql.NullString
	var accepted sql.NullBool
	var date string
	if err := row.Scan(&r.ID, &r.ClientID, &r.ResourceID, &goalID, &r.Score, &date, &accepted); err != nil {
		return domain.Recommendation{}, err
	}
	if goalID.Valid {
		r.GoalID = &goalID.String
	}
	if accepted.Valid {
		r.Accepted = &accepted.Bool
	}
	r.RecommendationDate = parseTime(date)
	return r, nil
}
