package domain

import "time"

// Subject is a rated party ("lowballer") keyed by its canonical UUID.
//
// RatingCount and AverageRating are derived from the subject's ratings and are
// only ever written by the aggregation step.
type Subject struct {
	ID            string
	DisplayName   string
	RatingCount   int64
	AverageRating float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Direction selects the ordering of a leaderboard.
type Direction string

const (
	DirectionBest  Direction = "best"
	DirectionWorst Direction = "worst"
)

// ParseDirection maps user input onto a Direction. Empty input means best.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case "", DirectionBest:
		return DirectionBest, nil
	case DirectionWorst:
		return DirectionWorst, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Status is a coarse label for a subject's average rating.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusAverage   Status = "average"
	StatusPoor      Status = "poor"
)

// StatusFor classifies an average rating.
func StatusFor(avg float64) Status {
	switch {
	case avg >= 8:
		return StatusExcellent
	case avg >= 6:
		return StatusGood
	case avg >= 4:
		return StatusAverage
	default:
		return StatusPoor
	}
}
