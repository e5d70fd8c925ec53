package domain

import "time"

// TenantSettings holds the per-guild configuration row.
//
// MinRating and MaxRating are advisory bounds for callers; the ledger itself
// only enforces the global [MinRatingValue, MaxRatingValue] range.
type TenantSettings struct {
	TenantID        string
	RatingChannelID *string
	AdminRoleID     *string
	MinRating       int
	MaxRating       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultSettings returns the settings used when a tenant has no stored row.
func DefaultSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID:  tenantID,
		MinRating: MinRatingValue,
		MaxRating: MaxRatingValue,
	}
}

// Validate checks the rating bounds.
func (s TenantSettings) Validate() error {
	if s.TenantID == "" {
		return ErrInvalidSettings
	}
	if s.MinRating < MinRatingValue || s.MaxRating > MaxRatingValue {
		return ErrInvalidSettings
	}
	if s.MinRating >= s.MaxRating {
		return ErrInvalidSettings
	}
	return nil
}
