package domain

import "errors"

var (
	// ErrNotFound indicates an identity or ledger entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRating indicates the rater already rated the subject.
	ErrDuplicateRating = errors.New("rating already submitted for this subject")
	// ErrInvalidRatingValue indicates a rating outside [1,10].
	ErrInvalidRatingValue = errors.New("rating must be between 1 and 10")
	// ErrInvalidComment indicates a comment longer than MaxCommentLength.
	ErrInvalidComment = errors.New("comment must be at most 500 characters")
	// ErrInvalidSettings indicates tenant settings whose bounds are inconsistent.
	ErrInvalidSettings = errors.New("invalid settings: min rating must be less than max rating within 1-10")
	// ErrInvalidDirection indicates an unknown leaderboard direction.
	ErrInvalidDirection = errors.New("direction must be best or worst")
	// ErrInvalidIdentity indicates a malformed subject identity.
	ErrInvalidIdentity = errors.New("invalid subject identity")
	// ErrStorageFault indicates an unexpected persistence failure.
	ErrStorageFault = errors.New("storage fault")
)

// StorageError wraps an unexpected persistence-layer error with the failing operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage fault: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorageFault) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFault }
