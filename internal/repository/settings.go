package repository

import (
	"context"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

// SettingsRepository persists per-tenant settings rows.
type SettingsRepository struct {
	db DBTX
}

const settingsColumns = `tenant_id, rating_channel_id, admin_role_id, min_rating, max_rating, created_at, updated_at`

// Get returns the stored settings or ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM tenant_settings WHERE tenant_id = $1`

	var s domain.TenantSettings
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&s.TenantID,
		&s.RatingChannelID,
		&s.AdminRoleID,
		&s.MinRating,
		&s.MaxRating,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.TenantSettings{}, mapPgError(err)
	}
	return s, nil
}

// Put replaces the tenant's settings row wholesale.
func (r *SettingsRepository) Put(ctx context.Context, settings domain.TenantSettings) (domain.TenantSettings, error) {
	const query = `
        INSERT INTO tenant_settings (tenant_id, rating_channel_id, admin_role_id, min_rating, max_rating)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id)
        DO UPDATE SET rating_channel_id = EXCLUDED.rating_channel_id,
                      admin_role_id = EXCLUDED.admin_role_id,
                      min_rating = EXCLUDED.min_rating,
                      max_rating = EXCLUDED.max_rating,
                      updated_at = now()
        RETURNING ` + settingsColumns

	var s domain.TenantSettings
	err := r.db.QueryRow(ctx, query,
		settings.TenantID,
		settings.RatingChannelID,
		settings.AdminRoleID,
		settings.MinRating,
		settings.MaxRating,
	).Scan(
		&s.TenantID,
		&s.RatingChannelID,
		&s.AdminRoleID,
		&s.MinRating,
		&s.MaxRating,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.TenantSettings{}, mapPgError(err)
	}
	return s, nil
}
