package domain

import "time"

// Rater is a platform account that submits ratings.
type Rater struct {
	ID          string
	DisplayName string
	// SubjectID links the rater to their own game account, when known.
	SubjectID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
