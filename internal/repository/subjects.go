package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

// SubjectsRepository persists subjects and their derived statistics.
type SubjectsRepository struct {
	db DBTX
}

const subjectColumns = `subject_id, display_name, rating_count, average_rating, created_at, updated_at`

// Upsert creates a subject with zeroed statistics or refreshes only its
// display name. Statistics are never reset here.
func (r *SubjectsRepository) Upsert(ctx context.Context, subjectID, displayName string) (domain.Subject, error) {
	const query = `
        INSERT INTO subjects (subject_id, display_name)
        VALUES ($1,$2)
        ON CONFLICT (subject_id)
        DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = now()
        RETURNING ` + subjectColumns

	subject, err := scanSubject(r.db.QueryRow(ctx, query, subjectID, displayName))
	if err != nil {
		return domain.Subject{}, mapPgError(err)
	}
	return subject, nil
}

// Get fetches a subject by canonical id.
func (r *SubjectsRepository) Get(ctx context.Context, subjectID string) (domain.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE subject_id = $1`
	subject, err := scanSubject(r.db.QueryRow(ctx, query, subjectID))
	if err != nil {
		return domain.Subject{}, mapPgError(err)
	}
	return subject, nil
}

// Lock fetches a subject and holds its row lock until the surrounding
// transaction ends. Concurrent submissions for the same subject queue here.
func (r *SubjectsRepository) Lock(ctx context.Context, subjectID string) (domain.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE subject_id = $1 FOR UPDATE`
	subject, err := scanSubject(r.db.QueryRow(ctx, query, subjectID))
	if err != nil {
		return domain.Subject{}, mapPgError(err)
	}
	return subject, nil
}

// Recompute rewrites rating_count and average_rating from the subject's
// rating rows in one statement. Running it twice yields the same row.
func (r *SubjectsRepository) Recompute(ctx context.Context, subjectID string) (domain.Subject, error) {
	const query = `
        UPDATE subjects AS s
        SET rating_count = agg.cnt,
            average_rating = agg.avg,
            updated_at = now()
        FROM (
            SELECT COUNT(*)::int8 AS cnt,
                   COALESCE(AVG(value), 0)::float8 AS avg
            FROM ratings
            WHERE subject_id = $1
        ) AS agg
        WHERE s.subject_id = $1
        RETURNING s.subject_id, s.display_name, s.rating_count, s.average_rating, s.created_at, s.updated_at
    `
	subject, err := scanSubject(r.db.QueryRow(ctx, query, subjectID))
	if err != nil {
		return domain.Subject{}, mapPgError(err)
	}
	return subject, nil
}

// Top returns rated subjects ordered for the given leaderboard direction.
func (r *SubjectsRepository) Top(ctx context.Context, limit int, direction domain.Direction) ([]domain.Subject, error) {
	var order string
	switch direction {
	case domain.DirectionBest:
		order = "average_rating DESC, rating_count DESC, subject_id ASC"
	case domain.DirectionWorst:
		order = "average_rating ASC, rating_count DESC, subject_id ASC"
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE rating_count > 0 ORDER BY ` + order + ` LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectSubjects(rows)
}

// Search matches display names case-insensitively by substring.
func (r *SubjectsRepository) Search(ctx context.Context, substring string, limit int) ([]domain.Subject, error) {
	query := `
        SELECT ` + subjectColumns + `
        FROM subjects
        WHERE display_name ILIKE $1
        ORDER BY rating_count DESC, average_rating DESC, subject_id ASC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, "%"+escapeLike(substring)+"%", limit)
	if err != nil {
		return nil, err
	}
	return collectSubjects(rows)
}

func collectSubjects(rows pgx.Rows) ([]domain.Subject, error) {
	defer rows.Close()

	results := make([]domain.Subject, 0)
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanSubject(row pgx.Row) (domain.Subject, error) {
	var subject domain.Subject
	err := row.Scan(
		&subject.ID,
		&subject.DisplayName,
		&subject.RatingCount,
		&subject.AverageRating,
		&subject.CreatedAt,
		&subject.UpdatedAt,
	)
	return subject, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
