package repository

import (
	"context"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

// RatersRepository persists raters.
type RatersRepository struct {
	db DBTX
}

// RaterUpsertParams captures the payload required to upsert a rater.
type RaterUpsertParams struct {
	RaterID     string
	DisplayName string
	SubjectID   *string
}

const raterColumns = `rater_id, display_name, subject_id, created_at, updated_at`

// Upsert creates the rater or refreshes its display name. A nil SubjectID
// keeps whatever link was stored before.
func (r *RatersRepository) Upsert(ctx context.Context, params RaterUpsertParams) (domain.Rater, error) {
	const query = `
        INSERT INTO raters (rater_id, display_name, subject_id)
        VALUES ($1,$2,$3)
        ON CONFLICT (rater_id)
        DO UPDATE SET display_name = EXCLUDED.display_name,
                      subject_id = COALESCE(EXCLUDED.subject_id, raters.subject_id),
                      updated_at = now()
        RETURNING ` + raterColumns

	var rater domain.Rater
	err := r.db.QueryRow(ctx, query, params.RaterID, params.DisplayName, params.SubjectID).Scan(
		&rater.ID,
		&rater.DisplayName,
		&rater.SubjectID,
		&rater.CreatedAt,
		&rater.UpdatedAt,
	)
	if err != nil {
		return domain.Rater{}, mapPgError(err)
	}
	return rater, nil
}

// Get retrieves a rater by id.
func (r *RatersRepository) Get(ctx context.Context, raterID string) (domain.Rater, error) {
	query := `SELECT ` + raterColumns + ` FROM raters WHERE rater_id = $1`

	var rater domain.Rater
	err := r.db.QueryRow(ctx, query, raterID).Scan(
		&rater.ID,
		&rater.DisplayName,
		&rater.SubjectID,
		&rater.CreatedAt,
		&rater.UpdatedAt,
	)
	if err != nil {
		return domain.Rater{}, mapPgError(err)
	}
	return rater, nil
}

// Count returns the number of rater rows.
func (r *RatersRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM raters`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
