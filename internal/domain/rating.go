package domain

import "time"

// Rating bounds accepted by the ledger regardless of tenant settings.
const (
	MinRatingValue   = 1
	MaxRatingValue   = 10
	MaxCommentLength = 500
)

// Rating represents a single rater's immutable rating of a subject.
type Rating struct {
	ID        int64
	SubjectID string
	RaterID   string
	Value     int
	Comment   *string
	CreatedAt time.Time
	// RaterName is the rater's last-known display name; nil when the rater row is gone.
	RaterName *string
}

// ValidRatingValue reports whether v lies inside the global [1,10] bound.
func ValidRatingValue(v int) bool {
	return v >= MinRatingValue && v <= MaxRatingValue
}

// RatingAggregate is the count and mean computed directly from a subject's ratings.
type RatingAggregate struct {
	Count   int64
	Average float64
}
