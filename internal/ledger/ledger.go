// Package ledger owns every write to the rating tables and keeps subject
// statistics consistent with the ratings they are derived from.
package ledger

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/identity"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/repository"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/store"
)

const (
	// DefaultLimit applies when a caller passes a non-positive limit.
	DefaultLimit = 10
	// MaxLimit caps list and leaderboard page sizes.
	MaxLimit = 100
)

// Ledger is constructed once per process and shared by all callers.
type Ledger struct {
	store *store.Store
	repo  *repository.Repository
	log   *logger.Logger
}

// New binds a ledger to an open store.
func New(st *store.Store, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		store: st,
		repo:  repository.New(st),
		log:   log.With("component", "ledger"),
	}
}

// RaterParams identifies the rater being refreshed.
type RaterParams struct {
	RaterID     string
	DisplayName string
	// SubjectID optionally links the rater to their own game account.
	SubjectID *string
}

// RatingParams is the payload of SubmitRating.
type RatingParams struct {
	SubjectID string
	RaterID   string
	Value     int
	Comment   *string
}

// UpsertRater creates the rater or refreshes its display name.
func (l *Ledger) UpsertRater(ctx context.Context, params RaterParams) (domain.Rater, error) {
	if params.RaterID == "" {
		return domain.Rater{}, domain.ErrInvalidIdentity
	}
	var link *string
	if params.SubjectID != nil {
		id, err := identity.Canonicalize(*params.SubjectID)
		if err != nil {
			return domain.Rater{}, err
		}
		link = &id
	}

	rater, err := l.repo.Raters.Upsert(ctx, repository.RaterUpsertParams{
		RaterID:     params.RaterID,
		DisplayName: params.DisplayName,
		SubjectID:   link,
	})
	if err != nil {
		return domain.Rater{}, translate("upsert rater", err)
	}
	return rater, nil
}

// UpsertSubject creates the subject with zeroed statistics or refreshes its
// display name.
func (l *Ledger) UpsertSubject(ctx context.Context, subjectID, displayName string) (domain.Subject, error) {
	id, err := identity.Canonicalize(subjectID)
	if err != nil {
		return domain.Subject{}, err
	}
	subject, err := l.repo.Subjects.Upsert(ctx, id, displayName)
	if err != nil {
		return domain.Subject{}, translate("upsert subject", err)
	}
	return subject, nil
}

// GetSubject returns a subject or domain.ErrNotFound.
func (l *Ledger) GetSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	id, err := identity.Canonicalize(subjectID)
	if err != nil {
		return domain.Subject{}, err
	}
	subject, err := l.repo.Subjects.Get(ctx, id)
	if err != nil {
		return domain.Subject{}, translate("get subject", err)
	}
	return subject, nil
}

// HasRated reports whether raterID already rated the subject.
func (l *Ledger) HasRated(ctx context.Context, subjectID, raterID string) (bool, error) {
	id, err := identity.Canonicalize(subjectID)
	if err != nil {
		return false, err
	}
	exists, err := l.repo.Ratings.Exists(ctx, id, raterID)
	if err != nil {
		return false, translate("has rated", err)
	}
	return exists, nil
}

// SubmitRating inserts an immutable rating and refreshes the subject's
// statistics in the same transaction. The subject row lock taken first makes
// concurrent submissions for one subject queue, so every recompute sees all
// ratings committed before it.
func (l *Ledger) SubmitRating(ctx context.Context, params RatingParams) (domain.Rating, domain.Subject, error) {
	if !domain.ValidRatingValue(params.Value) {
		return domain.Rating{}, domain.Subject{}, domain.ErrInvalidRatingValue
	}
	if params.Comment != nil && utf8.RuneCountInString(*params.Comment) > domain.MaxCommentLength {
		return domain.Rating{}, domain.Subject{}, domain.ErrInvalidComment
	}
	if params.RaterID == "" {
		return domain.Rating{}, domain.Subject{}, domain.ErrInvalidIdentity
	}
	id, err := identity.Canonicalize(params.SubjectID)
	if err != nil {
		return domain.Rating{}, domain.Subject{}, err
	}

	var (
		rating  domain.Rating
		subject domain.Subject
	)
	err = l.store.InTx(ctx, func(tx pgx.Tx) error {
		repo := l.repo.WithTx(tx)

		if _, err := repo.Subjects.Lock(ctx, id); err != nil {
			return err
		}
		inserted, err := repo.Ratings.Insert(ctx, repository.RatingInsertParams{
			SubjectID: id,
			RaterID:   params.RaterID,
			Value:     params.Value,
			Comment:   params.Comment,
		})
		if err != nil {
			return err
		}
		updated, err := repo.Subjects.Recompute(ctx, id)
		if err != nil {
			return err
		}
		rating, subject = inserted, updated
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Rating{}, domain.Subject{}, domain.ErrDuplicateRating
		}
		return domain.Rating{}, domain.Subject{}, translate("submit rating", err)
	}

	l.log.Debug("rating recorded",
		"subject_id", id,
		"rater_id", params.RaterID,
		"value", params.Value,
		"rating_count", subject.RatingCount,
		"average_rating", subject.AverageRating,
	)
	return rating, subject, nil
}

// Recompute rewrites a subject's statistics from its ratings. It is safe to
// call at any time and any number of times.
func (l *Ledger) Recompute(ctx context.Context, subjectID string) (domain.Subject, error) {
	id, err := identity.Canonicalize(subjectID)
	if err != nil {
		return domain.Subject{}, err
	}
	var subject domain.Subject
	err = l.store.InTx(ctx, func(tx pgx.Tx) error {
		repo := l.repo.WithTx(tx)
		if _, err := repo.Subjects.Lock(ctx, id); err != nil {
			return err
		}
		updated, err := repo.Subjects.Recompute(ctx, id)
		if err != nil {
			return err
		}
		subject = updated
		return nil
	})
	if err != nil {
		return domain.Subject{}, translate("recompute", err)
	}
	return subject, nil
}

// ListRatings returns a subject's ratings newest first.
func (l *Ledger) ListRatings(ctx context.Context, subjectID string, limit, offset int) ([]domain.Rating, error) {
	id, err := identity.Canonicalize(subjectID)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	ratings, err := l.repo.Ratings.ListBySubject(ctx, id, clampLimit(limit), offset)
	if err != nil {
		return nil, translate("list ratings", err)
	}
	return ratings, nil
}

// TopSubjects returns the leaderboard for direction.
func (l *Ledger) TopSubjects(ctx context.Context, limit int, direction domain.Direction) ([]domain.Subject, error) {
	if direction != domain.DirectionBest && direction != domain.DirectionWorst {
		return nil, domain.ErrInvalidDirection
	}
	subjects, err := l.repo.Subjects.Top(ctx, clampLimit(limit), direction)
	if err != nil {
		return nil, translate("top subjects", err)
	}
	return subjects, nil
}

// SearchSubjects matches display names case-insensitively.
func (l *Ledger) SearchSubjects(ctx context.Context, substring string, limit int) ([]domain.Subject, error) {
	subjects, err := l.repo.Subjects.Search(ctx, substring, clampLimit(limit))
	if err != nil {
		return nil, translate("search subjects", err)
	}
	return subjects, nil
}

// GetSettings returns the tenant's settings, or defaults when none are stored.
func (l *Ledger) GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	settings, err := l.repo.Settings.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DefaultSettings(tenantID), nil
	}
	if err != nil {
		return domain.TenantSettings{}, translate("get settings", err)
	}
	return settings, nil
}

// PutSettings replaces the tenant's settings row. Invalid bounds leave the
// stored row untouched.
func (l *Ledger) PutSettings(ctx context.Context, settings domain.TenantSettings) (domain.TenantSettings, error) {
	if err := settings.Validate(); err != nil {
		return domain.TenantSettings{}, err
	}
	stored, err := l.repo.Settings.Put(ctx, settings)
	if err != nil {
		if errors.Is(err, repository.ErrConstraint) {
			return domain.TenantSettings{}, domain.ErrInvalidSettings
		}
		return domain.TenantSettings{}, translate("put settings", err)
	}
	l.log.Info("settings updated", "tenant_id", stored.TenantID, "min_rating", stored.MinRating, "max_rating", stored.MaxRating)
	return stored, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// translate maps repository outcomes onto the domain taxonomy. Anything not
// recognised is a storage fault.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrMissingReference):
		return domain.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &domain.StorageError{Op: op, Err: err}
	}
}
