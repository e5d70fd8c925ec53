// Package rating runs the caller-facing workflows on top of the resolver and
// the ledger. External resolution always finishes before any ledger write.
package rating

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/identity"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/ledger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
)

// DefaultRecent is how many ratings a profile view shows.
const DefaultRecent = 5

// Resolver resolves user input to a canonical identity.
type Resolver interface {
	Resolve(ctx context.Context, nameOrID string) (domain.Identity, error)
}

// Ledger is the subset of ledger operations the workflows use.
type Ledger interface {
	UpsertRater(ctx context.Context, params ledger.RaterParams) (domain.Rater, error)
	UpsertSubject(ctx context.Context, subjectID, displayName string) (domain.Subject, error)
	GetSubject(ctx context.Context, subjectID string) (domain.Subject, error)
	HasRated(ctx context.Context, subjectID, raterID string) (bool, error)
	SubmitRating(ctx context.Context, params ledger.RatingParams) (domain.Rating, domain.Subject, error)
	ListRatings(ctx context.Context, subjectID string, limit, offset int) ([]domain.Rating, error)
}

// Service wires resolution and ledger writes together.
type Service struct {
	resolver Resolver
	ledger   Ledger
	log      *logger.Logger
}

// NewService constructs a Service.
func NewService(resolver Resolver, l Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{resolver: resolver, ledger: l, log: log.With("component", "rating")}
}

// RateRequest is one rater's submission against a subject name or id.
type RateRequest struct {
	Name      string
	RaterID   string
	RaterName string
	Value     int
	Comment   string
}

// RateResult carries the stored rating and the refreshed subject.
type RateResult struct {
	Identity domain.Identity
	Rating   domain.Rating
	Subject  domain.Subject
}

// Rate validates the request, resolves the subject and records the rating.
// Invalid input and unresolved names never reach the ledger.
func (s *Service) Rate(ctx context.Context, req RateRequest) (RateResult, error) {
	if !domain.ValidRatingValue(req.Value) {
		return RateResult{}, domain.ErrInvalidRatingValue
	}
	comment := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(comment) > domain.MaxCommentLength {
		return RateResult{}, domain.ErrInvalidComment
	}
	if strings.TrimSpace(req.RaterID) == "" {
		return RateResult{}, domain.ErrInvalidIdentity
	}

	resolved, err := s.resolver.Resolve(ctx, req.Name)
	if err != nil {
		return RateResult{}, err
	}

	rated, err := s.ledger.HasRated(ctx, resolved.UUID, req.RaterID)
	if err != nil {
		return RateResult{}, err
	}
	if rated {
		return RateResult{}, domain.ErrDuplicateRating
	}

	raterName := req.RaterName
	if raterName == "" {
		raterName = req.RaterID
	}
	if _, err := s.ledger.UpsertRater(ctx, ledger.RaterParams{RaterID: req.RaterID, DisplayName: raterName}); err != nil {
		return RateResult{}, err
	}
	if _, err := s.ledger.UpsertSubject(ctx, resolved.UUID, resolved.DisplayName); err != nil {
		return RateResult{}, err
	}

	params := ledger.RatingParams{SubjectID: resolved.UUID, RaterID: req.RaterID, Value: req.Value}
	if comment != "" {
		params.Comment = &comment
	}
	rating, subject, err := s.ledger.SubmitRating(ctx, params)
	if err != nil {
		return RateResult{}, err
	}

	s.log.Info("rating submitted",
		"subject_id", subject.ID,
		"subject_name", subject.DisplayName,
		"rater_id", req.RaterID,
		"value", req.Value,
	)
	return RateResult{Identity: resolved, Rating: rating, Subject: subject}, nil
}

// ProfileView is a subject's public rating profile.
type ProfileView struct {
	Identity domain.Identity
	Subject  domain.Subject
	// Rated is false when nobody has rated the subject yet.
	Rated  bool
	Status domain.Status
	Recent []domain.Rating
}

// Profile resolves nameOrID and assembles its profile. A resolvable subject
// that was never rated is not an error.
func (s *Service) Profile(ctx context.Context, nameOrID string, recent int) (ProfileView, error) {
	if recent <= 0 {
		recent = DefaultRecent
	}
	resolved, err := s.resolver.Resolve(ctx, nameOrID)
	if err != nil {
		return ProfileView{}, err
	}

	view := ProfileView{
		Identity: resolved,
		Subject:  domain.Subject{ID: resolved.UUID, DisplayName: resolved.DisplayName},
		Recent:   []domain.Rating{},
	}
	subject, err := s.ledger.GetSubject(ctx, resolved.UUID)
	switch {
	case err == nil:
		view.Subject = subject
	case errors.Is(err, domain.ErrNotFound):
		return view, nil
	default:
		return ProfileView{}, err
	}
	if subject.RatingCount == 0 {
		return view, nil
	}

	view.Rated = true
	view.Status = domain.StatusFor(subject.AverageRating)
	view.Recent, err = s.ledger.ListRatings(ctx, resolved.UUID, recent, 0)
	if err != nil {
		return ProfileView{}, err
	}
	return view, nil
}

// Ratings lists a subject's ratings newest first. Canonical ids are used as
// given; names are resolved first.
func (s *Service) Ratings(ctx context.Context, nameOrID string, limit, offset int) (string, []domain.Rating, error) {
	subjectID, err := identity.Canonicalize(nameOrID)
	if err != nil {
		resolved, err := s.resolver.Resolve(ctx, nameOrID)
		if err != nil {
			return "", nil, err
		}
		subjectID = resolved.UUID
	}
	ratings, err := s.ledger.ListRatings(ctx, subjectID, limit, offset)
	if err != nil {
		return "", nil, err
	}
	return subjectID, ratings, nil
}
