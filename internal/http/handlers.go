package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/rating"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 20
	defaultPageLimit        = 10
	maxPageLimit            = 100
)

type rateRequest struct {
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type rateResponse struct {
	Rating  ratingResponse  `json:"rating"`
	Subject subjectResponse `json:"subject"`
}

type subjectResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	RatingCount   int64   `json:"ratingCount"`
	AverageRating float64 `json:"averageRating"`
}

type ratingResponse struct {
	ID        int64     `json:"id"`
	SubjectID string    `json:"subjectId"`
	RaterID   string    `json:"raterId"`
	RaterName *string   `json:"raterName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type gameProfileResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	LastSave    *time.Time `json:"lastSave,omitempty"`
	Purse       float64    `json:"purse"`
	BankBalance float64    `json:"bankBalance"`
}

type profileResponse struct {
	Subject       subjectResponse       `json:"subject"`
	Rated         bool                  `json:"rated"`
	Status        domain.Status         `json:"status,omitempty"`
	Profiles      []gameProfileResponse `json:"profiles"`
	RecentRatings []ratingResponse      `json:"recentRatings"`
}

type subjectListResponse struct {
	Items []subjectResponse `json:"items"`
}

type ratingListResponse struct {
	SubjectID string           `json:"subjectId"`
	Items     []ratingResponse `json:"items"`
}

type leaderboardResponse struct {
	Direction domain.Direction  `json:"direction"`
	Items     []subjectResponse `json:"items"`
}

type settingsRequest struct {
	RatingChannelID *string `json:"ratingChannelId"`
	AdminRoleID     *string `json:"adminRoleId"`
	MinRating       *int    `json:"minRating"`
	MaxRating       *int    `json:"maxRating"`
}

type settingsResponse struct {
	TenantID        string  `json:"tenantId"`
	RatingChannelID *string `json:"ratingChannelId,omitempty"`
	AdminRoleID     *string `json:"adminRoleId,omitempty"`
	MinRating       int     `json:"minRating"`
	MaxRating       int     `json:"maxRating"`
}

// handleSubmitRating trusts X-Rater-Id only from callers holding the API
// token, so rater identities cannot be minted by anonymous clients.
func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	raterID := strings.TrimSpace(r.Header.Get("X-Rater-Id"))
	if !s.verifyBearer(r.Header.Get("Authorization")) || raterID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req rateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required")
		return
	}

	result, err := s.workflows.Rate(r.Context(), rating.RateRequest{
		Name:      req.Name,
		RaterID:   raterID,
		RaterName: strings.TrimSpace(r.Header.Get("X-Rater-Name")),
		Value:     req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.respondServiceError(w, "submit rating", err)
		return
	}

	w.Header().Set("Location", "/subjects/"+url.PathEscape(result.Subject.ID))
	s.respondJSON(w, http.StatusCreated, rateResponse{
		Rating:  toRatingResponse(result.Rating),
		Subject: toSubjectResponse(result.Subject),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	nameOrID, err := decodePathParam(r, "nameOrId")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	view, err := s.workflows.Profile(r.Context(), nameOrID, rating.DefaultRecent)
	if err != nil {
		s.respondServiceError(w, "profile", err)
		return
	}

	resp := profileResponse{
		Subject:       toSubjectResponse(view.Subject),
		Rated:         view.Rated,
		Status:        view.Status,
		Profiles:      make([]gameProfileResponse, 0, len(view.Identity.Profiles)),
		RecentRatings: toRatingResponses(view.Recent),
	}
	for _, p := range view.Identity.Profiles {
		gp := gameProfileResponse{ID: p.ID, Name: p.Name, Purse: p.Purse, BankBalance: p.BankBalance}
		if !p.LastSave.IsZero() {
			last := p.LastSave
			gp.LastSave = &last
		}
		resp.Profiles = append(resp.Profiles, gp)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	nameOrID, err := decodePathParam(r, "nameOrId")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	query := r.URL.Query()
	limit, err := parseIntParam(query, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	offset, err := parseIntParam(query, "offset", 0, 0, -1)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	subjectID, ratings, err := s.workflows.Ratings(r.Context(), nameOrID, limit, offset)
	if err != nil {
		s.respondServiceError(w, "list ratings", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ratingListResponse{SubjectID: subjectID, Items: toRatingResponses(ratings)})
}

func (s *Server) handleSearchSubjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "q is required")
		return
	}
	limit, err := parseIntParam(query, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	subjects, err := s.ledger.SearchSubjects(r.Context(), q, limit)
	if err != nil {
		s.respondServiceError(w, "search subjects", err)
		return
	}
	s.respondJSON(w, http.StatusOK, subjectListResponse{Items: toSubjectResponses(subjects)})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	direction, err := domain.ParseDirection(strings.ToLower(strings.TrimSpace(query.Get("direction"))))
	if err != nil {
		s.respondServiceError(w, "leaderboard", err)
		return
	}
	limit, err := parseIntParam(query, "limit", defaultLeaderboardLimit, 1, maxLeaderboardLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	subjects, err := s.ledger.TopSubjects(r.Context(), limit, direction)
	if err != nil {
		s.respondServiceError(w, "leaderboard", err)
		return
	}
	s.respondJSON(w, http.StatusOK, leaderboardResponse{Direction: direction, Items: toSubjectResponses(subjects)})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := decodePathParam(r, "tenantId")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	settings, err := s.ledger.GetSettings(r.Context(), tenantID)
	if err != nil {
		s.respondServiceError(w, "get settings", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSettingsResponse(settings))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	tenantID, err := decodePathParam(r, "tenantId")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req settingsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	settings := domain.DefaultSettings(tenantID)
	settings.RatingChannelID = normalizeStringPtr(req.RatingChannelID)
	settings.AdminRoleID = normalizeStringPtr(req.AdminRoleID)
	if req.MinRating != nil {
		settings.MinRating = *req.MinRating
	}
	if req.MaxRating != nil {
		settings.MaxRating = *req.MaxRating
	}

	stored, err := s.ledger.PutSettings(r.Context(), settings)
	if err != nil {
		s.respondServiceError(w, "put settings", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSettingsResponse(stored))
}

// parseIntParam reads an optional integer query parameter bounded by
// [lo, hi]. A negative hi means unbounded.
func parseIntParam(query url.Values, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value", key)
	}
	switch {
	case hi >= 0 && (val < lo || val > hi):
		return 0, fmt.Errorf("%s must be between %d and %d", key, lo, hi)
	case val < lo:
		return 0, fmt.Errorf("%s must be at least %d", key, lo)
	}
	return val, nil
}

func decodePathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		return "", fmt.Errorf("missing %s parameter", key)
	}
	val, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter", key)
	}
	return strings.TrimSpace(val), nil
}

func toSubjectResponse(s domain.Subject) subjectResponse {
	return subjectResponse{
		ID:            s.ID,
		Name:          s.DisplayName,
		RatingCount:   s.RatingCount,
		AverageRating: s.AverageRating,
	}
}

func toSubjectResponses(subjects []domain.Subject) []subjectResponse {
	items := make([]subjectResponse, 0, len(subjects))
	for _, s := range subjects {
		items = append(items, toSubjectResponse(s))
	}
	return items
}

func toRatingResponse(r domain.Rating) ratingResponse {
	return ratingResponse{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		RaterID:   r.RaterID,
		RaterName: r.RaterName,
		Rating:    r.Value,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func toRatingResponses(ratings []domain.Rating) []ratingResponse {
	items := make([]ratingResponse, 0, len(ratings))
	for _, r := range ratings {
		items = append(items, toRatingResponse(r))
	}
	return items
}

func toSettingsResponse(s domain.TenantSettings) settingsResponse {
	return settingsResponse{
		TenantID:        s.TenantID,
		RatingChannelID: s.RatingChannelID,
		AdminRoleID:     s.AdminRoleID,
		MinRating:       s.MinRating,
		MaxRating:       s.MaxRating,
	}
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}
