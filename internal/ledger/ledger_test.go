package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/pgtest"
)

func newTestLedger(t testing.TB) (context.Context, *Ledger) {
	t.Helper()
	env := pgtest.New(t)
	return env.Ctx, New(env.Store, nil)
}

func subjectID(n int) string {
	return fmt.Sprintf("%032x", n)
}

func mustSubject(t testing.TB, ctx context.Context, l *Ledger, id, name string) {
	t.Helper()
	if _, err := l.UpsertSubject(ctx, id, name); err != nil {
		t.Fatalf("UpsertSubject(%s): %v", name, err)
	}
}

func mustSubmit(t testing.TB, ctx context.Context, l *Ledger, id, rater string, value int) domain.Subject {
	t.Helper()
	_, subject, err := l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: rater, Value: value})
	if err != nil {
		t.Fatalf("SubmitRating(%s, %s, %d): %v", id, rater, value, err)
	}
	return subject
}

// assertConsistent checks the stored statistics against the rating rows.
func assertConsistent(t testing.TB, ctx context.Context, l *Ledger, id string) domain.Subject {
	t.Helper()
	subject, err := l.GetSubject(ctx, id)
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	agg, err := l.repo.Ratings.Aggregate(ctx, id)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if subject.RatingCount != agg.Count || math.Abs(subject.AverageRating-agg.Average) > 1e-9 {
		t.Fatalf("stored %d/%v, ratings say %d/%v", subject.RatingCount, subject.AverageRating, agg.Count, agg.Average)
	}
	return subject
}

func TestSubmitRatingScenario(t *testing.T) {
	ctx, l := newTestLedger(t)
	u1 := subjectID(1)
	mustSubject(t, ctx, l, u1, "U1")

	for i, v := range []int{8, 6, 10} {
		mustSubmit(t, ctx, l, u1, fmt.Sprintf("rater-%d", i+1), v)
		assertConsistent(t, ctx, l, u1)
	}
	subject := assertConsistent(t, ctx, l, u1)
	if subject.RatingCount != 3 || subject.AverageRating != 8.0 {
		t.Fatalf("after three ratings = %d/%v, want 3/8.0", subject.RatingCount, subject.AverageRating)
	}

	subject = mustSubmit(t, ctx, l, u1, "rater-4", 2)
	if subject.RatingCount != 4 || subject.AverageRating != 6.5 {
		t.Fatalf("after fourth rating = %d/%v, want 4/6.5", subject.RatingCount, subject.AverageRating)
	}

	_, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: u1, RaterID: "rater-1", Value: 1})
	if !errors.Is(err, domain.ErrDuplicateRating) {
		t.Fatalf("repeat rating error = %v, want ErrDuplicateRating", err)
	}
	subject = assertConsistent(t, ctx, l, u1)
	if subject.RatingCount != 4 || subject.AverageRating != 6.5 {
		t.Fatalf("after rejected rating = %d/%v, want 4/6.5", subject.RatingCount, subject.AverageRating)
	}
}

func TestSubmitRatingValueBounds(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(2)
	mustSubject(t, ctx, l, id, "Bounds")

	for _, v := range []int{0, 11, -3} {
		_, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: fmt.Sprintf("bad-%d", v), Value: v})
		if !errors.Is(err, domain.ErrInvalidRatingValue) {
			t.Fatalf("value %d error = %v, want ErrInvalidRatingValue", v, err)
		}
	}
	mustSubmit(t, ctx, l, id, "low", 1)
	subject := mustSubmit(t, ctx, l, id, "high", 10)
	if subject.RatingCount != 2 || subject.AverageRating != 5.5 {
		t.Fatalf("stats = %d/%v, want 2/5.5", subject.RatingCount, subject.AverageRating)
	}
}

func TestSubmitRatingComment(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(3)
	mustSubject(t, ctx, l, id, "Comments")

	long := strings.Repeat("é", domain.MaxCommentLength+1)
	_, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: "a", Value: 5, Comment: &long})
	if !errors.Is(err, domain.ErrInvalidComment) {
		t.Fatalf("long comment error = %v, want ErrInvalidComment", err)
	}

	exact := strings.Repeat("é", domain.MaxCommentLength)
	rating, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: "a", Value: 5, Comment: &exact})
	if err != nil {
		t.Fatalf("max length comment: %v", err)
	}
	if rating.Comment == nil || *rating.Comment != exact {
		t.Fatalf("comment not stored")
	}
}

func TestSubmitRatingUnknownSubject(t *testing.T) {
	ctx, l := newTestLedger(t)

	_, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: subjectID(404), RaterID: "a", Value: 5})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown subject error = %v, want ErrNotFound", err)
	}
	_, _, err = l.SubmitRating(ctx, RatingParams{SubjectID: "not-a-uuid", RaterID: "a", Value: 5})
	if !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("malformed subject error = %v, want ErrInvalidIdentity", err)
	}
}

func TestSubmitRatingAcceptsHyphenatedID(t *testing.T) {
	ctx, l := newTestLedger(t)
	const dashed = "069A79F4-44E9-4726-A5BE-FCA90E38AAF5"
	const canonical = "069a79f444e94726a5befca90e38aaf5"

	subject, err := l.UpsertSubject(ctx, dashed, "Notch")
	if err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}
	if subject.ID != canonical {
		t.Fatalf("stored id = %s, want %s", subject.ID, canonical)
	}
	mustSubmit(t, ctx, l, canonical, "a", 7)
	if _, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: dashed, RaterID: "a", Value: 3}); !errors.Is(err, domain.ErrDuplicateRating) {
		t.Fatalf("same subject in another format error = %v, want ErrDuplicateRating", err)
	}
}

func TestUpsertsAreIdempotent(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(5)

	mustSubject(t, ctx, l, id, "First")
	mustSubmit(t, ctx, l, id, "r", 9)
	subject, err := l.UpsertSubject(ctx, id, "Second")
	if err != nil {
		t.Fatalf("second UpsertSubject: %v", err)
	}
	if subject.DisplayName != "Second" || subject.RatingCount != 1 || subject.AverageRating != 9 {
		t.Fatalf("subject after re-upsert = %+v", subject)
	}

	if _, err := l.UpsertRater(ctx, RaterParams{RaterID: "r", DisplayName: "alice"}); err != nil {
		t.Fatalf("UpsertRater: %v", err)
	}
	rater, err := l.UpsertRater(ctx, RaterParams{RaterID: "r", DisplayName: "alice2"})
	if err != nil {
		t.Fatalf("second UpsertRater: %v", err)
	}
	if rater.DisplayName != "alice2" {
		t.Fatalf("rater name = %s, want alice2", rater.DisplayName)
	}
	count, err := l.repo.Raters.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("rater rows = %d, %v; want 1", count, err)
	}

	bad := "nope"
	if _, err := l.UpsertRater(ctx, RaterParams{RaterID: "r", DisplayName: "x", SubjectID: &bad}); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("bad subject link error = %v, want ErrInvalidIdentity", err)
	}
}

func TestHasRatedAndListRatings(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(6)
	mustSubject(t, ctx, l, id, "Lister")

	if _, err := l.UpsertRater(ctx, RaterParams{RaterID: "a", DisplayName: "Alice"}); err != nil {
		t.Fatalf("UpsertRater: %v", err)
	}
	mustSubmit(t, ctx, l, id, "a", 4)
	mustSubmit(t, ctx, l, id, "b", 6)

	rated, err := l.HasRated(ctx, id, "a")
	if err != nil || !rated {
		t.Fatalf("HasRated(a) = %v, %v", rated, err)
	}
	rated, err = l.HasRated(ctx, id, "c")
	if err != nil || rated {
		t.Fatalf("HasRated(c) = %v, %v", rated, err)
	}

	ratings, err := l.ListRatings(ctx, id, 0, -1)
	if err != nil {
		t.Fatalf("ListRatings: %v", err)
	}
	if len(ratings) != 2 || ratings[0].RaterID != "b" {
		t.Fatalf("ratings = %+v, want newest first", ratings)
	}
	if ratings[1].RaterName == nil || *ratings[1].RaterName != "Alice" {
		t.Fatalf("rater name not annotated: %+v", ratings[1])
	}
}

func TestTopSubjects(t *testing.T) {
	ctx, l := newTestLedger(t)
	a, b, c := subjectID(10), subjectID(11), subjectID(12)
	mustSubject(t, ctx, l, a, "A")
	mustSubject(t, ctx, l, b, "B")
	mustSubject(t, ctx, l, c, "Unrated")

	for i := 0; i < 2; i++ {
		mustSubmit(t, ctx, l, a, fmt.Sprintf("a%d", i), 9)
	}
	for i := 0; i < 5; i++ {
		mustSubmit(t, ctx, l, b, fmt.Sprintf("b%d", i), 9)
	}

	top, err := l.TopSubjects(ctx, 1, domain.DirectionBest)
	if err != nil {
		t.Fatalf("TopSubjects: %v", err)
	}
	if len(top) != 1 || top[0].ID != b {
		t.Fatalf("top = %+v, want B", top)
	}

	worst, err := l.TopSubjects(ctx, 0, domain.DirectionWorst)
	if err != nil {
		t.Fatalf("TopSubjects(worst): %v", err)
	}
	if len(worst) != 2 {
		t.Fatalf("worst = %d entries, want 2 (unrated excluded)", len(worst))
	}

	if _, err := l.TopSubjects(ctx, 5, domain.Direction("sideways")); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Fatalf("bad direction error = %v, want ErrInvalidDirection", err)
	}
}

func TestSearchSubjects(t *testing.T) {
	ctx, l := newTestLedger(t)
	mustSubject(t, ctx, l, subjectID(20), "CoolTrader")
	mustSubject(t, ctx, l, subjectID(21), "Trader100")
	mustSubject(t, ctx, l, subjectID(22), "Other")
	mustSubmit(t, ctx, l, subjectID(21), "x", 3)

	found, err := l.SearchSubjects(ctx, "TRADER", 10)
	if err != nil {
		t.Fatalf("SearchSubjects: %v", err)
	}
	if len(found) != 2 || found[0].ID != subjectID(21) {
		t.Fatalf("search = %+v, want rated Trader100 first", found)
	}

	none, err := l.SearchSubjects(ctx, "%", 10)
	if err != nil {
		t.Fatalf("SearchSubjects(%%): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("%% must match literally, got %d", len(none))
	}
}

func TestSettings(t *testing.T) {
	ctx, l := newTestLedger(t)

	defaults, err := l.GetSettings(ctx, "guild")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if defaults.MinRating != 1 || defaults.MaxRating != 10 || defaults.RatingChannelID != nil {
		t.Fatalf("defaults = %+v", defaults)
	}

	role := "role-1"
	stored, err := l.PutSettings(ctx, domain.TenantSettings{TenantID: "guild", AdminRoleID: &role, MinRating: 3, MaxRating: 9})
	if err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	if stored.MinRating != 3 || stored.MaxRating != 9 {
		t.Fatalf("stored = %+v", stored)
	}

	for _, bad := range []domain.TenantSettings{
		{TenantID: "guild", MinRating: 5, MaxRating: 5},
		{TenantID: "guild", MinRating: 7, MaxRating: 2},
		{TenantID: "guild", MinRating: 0, MaxRating: 5},
		{TenantID: "guild", MinRating: 1, MaxRating: 11},
	} {
		if _, err := l.PutSettings(ctx, bad); !errors.Is(err, domain.ErrInvalidSettings) {
			t.Fatalf("PutSettings(%d,%d) error = %v, want ErrInvalidSettings", bad.MinRating, bad.MaxRating, err)
		}
	}

	after, err := l.GetSettings(ctx, "guild")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if after.MinRating != 3 || after.MaxRating != 9 || after.AdminRoleID == nil || *after.AdminRoleID != role {
		t.Fatalf("row changed by rejected writes: %+v", after)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(30)
	mustSubject(t, ctx, l, id, "Idem")
	mustSubmit(t, ctx, l, id, "a", 3)
	mustSubmit(t, ctx, l, id, "b", 4)

	first, err := l.Recompute(ctx, id)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	second, err := l.Recompute(ctx, id)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if first.RatingCount != second.RatingCount || first.AverageRating != second.AverageRating || first.AverageRating != 3.5 {
		t.Fatalf("recompute results differ: %+v vs %+v", first, second)
	}

	if _, err := l.Recompute(ctx, subjectID(404)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Recompute(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSubmissionsStayConsistent(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(40)
	mustSubject(t, ctx, l, id, "Busy")

	const raters = 20
	var g errgroup.Group
	for i := 0; i < raters; i++ {
		i := i
		g.Go(func() error {
			_, _, err := l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: fmt.Sprintf("r%d", i), Value: 1 + i%10})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submit: %v", err)
	}

	subject := assertConsistent(t, ctx, l, id)
	if subject.RatingCount != raters || subject.AverageRating != 5.5 {
		t.Fatalf("stats = %d/%v, want %d/5.5", subject.RatingCount, subject.AverageRating, raters)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	ctx, l := newTestLedger(t)
	id := subjectID(41)
	mustSubject(t, ctx, l, id, "Racy")

	const attempts = 10
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, _, results[i] = l.SubmitRating(ctx, RatingParams{SubjectID: id, RaterID: "same", Value: 7})
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrDuplicateRating):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful submissions = %d, want 1", succeeded)
	}
	subject := assertConsistent(t, ctx, l, id)
	if subject.RatingCount != 1 || subject.AverageRating != 7 {
		t.Fatalf("stats = %d/%v, want 1/7", subject.RatingCount, subject.AverageRating)
	}
}

func TestStorageFaultsAreTyped(t *testing.T) {
	ctx, l := newTestLedger(t)
	l.store.Close()

	_, err := l.GetSettings(ctx, "guild")
	if !errors.Is(err, domain.ErrStorageFault) {
		t.Fatalf("closed pool error = %v, want ErrStorageFault", err)
	}
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "get settings" {
		t.Fatalf("error = %v, want StorageError for get settings", err)
	}
}
