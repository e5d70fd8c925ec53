package repository

import (
	"context"
	"fmt"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

// RatingsRepository provides helpers for subject ratings.
type RatingsRepository struct {
	db DBTX
}

// RatingInsertParams captures the payload required to insert a rating.
type RatingInsertParams struct {
	SubjectID string
	RaterID   string
	Value     int
	Comment   *string
}

// Insert stores a new rating. The (subject_id, rater_id) unique constraint
// turns a second rating by the same rater into ErrDuplicate.
func (r *RatingsRepository) Insert(ctx context.Context, params RatingInsertParams) (domain.Rating, error) {
	const query = `
        INSERT INTO ratings (subject_id, rater_id, value, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING id, subject_id, rater_id, value, comment, created_at
    `

	var rating domain.Rating
	err := r.db.QueryRow(ctx, query, params.SubjectID, params.RaterID, params.Value, params.Comment).Scan(
		&rating.ID,
		&rating.SubjectID,
		&rating.RaterID,
		&rating.Value,
		&rating.Comment,
		&rating.CreatedAt,
	)
	if err != nil {
		return domain.Rating{}, mapPgError(err)
	}
	return rating, nil
}

// Exists reports whether the rater has already rated the subject.
func (r *RatingsRepository) Exists(ctx context.Context, subjectID, raterID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM ratings WHERE subject_id = $1 AND rater_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, subjectID, raterID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListBySubject returns a page of ratings newest first with rater names.
func (r *RatingsRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]domain.Rating, error) {
	const query = `
        SELECT r.id, r.subject_id, r.rater_id, r.value, r.comment, r.created_at, u.display_name
        FROM ratings r
        LEFT JOIN raters u ON u.rater_id = r.rater_id
        WHERE r.subject_id = $1
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Rating, 0)
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.SubjectID,
			&rating.RaterID,
			&rating.Value,
			&rating.Comment,
			&rating.CreatedAt,
			&rating.RaterName,
		); err != nil {
			return nil, err
		}
		results = append(results, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Aggregate computes the count and mean straight from the ratings table.
func (r *RatingsRepository) Aggregate(ctx context.Context, subjectID string) (domain.RatingAggregate, error) {
	const query = `
        SELECT COUNT(*)::int8 AS count,
               COALESCE(AVG(value), 0)::float8 AS average
        FROM ratings
        WHERE subject_id = $1
    `

	var agg domain.RatingAggregate
	err := r.db.QueryRow(ctx, query, subjectID).Scan(&agg.Count, &agg.Average)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}
