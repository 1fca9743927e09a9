package mastery

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/types"
)

const epsilon = 1e-4

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %.6f, want %.6f (diff %.6f)", name, got, want, math.Abs(got-want))
	}
}

func newTestEstimator() *Estimator {
	return NewEstimator(config.Default().Mastery)
}

// --- retrievability ---

func TestRetrievabilityAtZero(t *testing.T) {
	e := newTestEstimator()
	assertFloat(t, "R(0, 5)", e.Retrievability(0, 5), 1.0)
}

func TestRetrievabilityAtStability(t *testing.T) {
	e := newTestEstimator()
	// R(S, S) is 0.9 by definition of stability.
	assertFloat(t, "R(14, 14)", e.Retrievability(14, 14), 0.9)
}

func TestRetrievabilityPartialInterval(t *testing.T) {
	e := newTestEstimator()
	// Three days into a fourteen-day stability: 0.9^(3/14).
	assertFloat(t, "R(3, 14)", e.Retrievability(3, 14), 0.97768)
}

func TestRetrievabilityClampsNegativeElapsed(t *testing.T) {
	e := newTestEstimator()
	assertFloat(t, "R(-3, 5)", e.Retrievability(-3, 5), 1.0)
}

func TestRetrievabilityClampsLowStability(t *testing.T) {
	e := newTestEstimator()
	// Stability below the floor is raised to it, never divides toward zero.
	assertFloat(t, "R(1, 0.001)", e.Retrievability(1, 0.001), e.Retrievability(1, 1))
}

func TestRetrievabilityMonotoneInElapsed(t *testing.T) {
	e := newTestEstimator()
	r1 := e.Retrievability(1, 5)
	r2 := e.Retrievability(10, 5)
	if r1 <= r2 {
		t.Errorf("R(1, 5) = %.4f should be > R(10, 5) = %.4f", r1, r2)
	}
}

// --- review mastery ---

func TestReviewMasteryWeightsByReviewCount(t *testing.T) {
	e := newTestEstimator()
	// Atom A: counted at the cap (20), fully fresh -> R = 1.
	// Atom B: weight 5, one stability interval old -> R = 0.9.
	got := e.ReviewMastery([]AtomReview{
		{StabilityDays: 5, DaysSinceReview: 0, ReviewCount: 40},
		{StabilityDays: 5, DaysSinceReview: 5, ReviewCount: 5},
	})
	assertFloat(t, "review mastery", got, (20*1.0+5*0.9)/25)
}

func TestReviewMasteryIgnoresUnreviewedAtoms(t *testing.T) {
	e := newTestEstimator()
	got := e.ReviewMastery([]AtomReview{
		{StabilityDays: 5, DaysSinceReview: 0, ReviewCount: 0},
		{StabilityDays: 5, DaysSinceReview: 5, ReviewCount: 1},
	})
	assertFloat(t, "review mastery", got, 0.9)
}

func TestReviewMasteryNoHistory(t *testing.T) {
	e := newTestEstimator()
	assertFloat(t, "review mastery", e.ReviewMastery(nil), 0)
}

// --- quiz mastery ---

func TestQuizMasteryMaxOfWindow(t *testing.T) {
	e := newTestEstimator()
	// Only the last 3 attempts count; the early 1.0 has scrolled out.
	got := e.QuizMastery([]float64{1.0, 0.2, 0.3, 0.4})
	assertFloat(t, "quiz mastery", got, 0.4)
}

func TestQuizMasteryNoHistory(t *testing.T) {
	e := newTestEstimator()
	assertFloat(t, "quiz mastery", e.QuizMastery(nil), 0)
}

// --- levels and blend ---

func TestLevelBoundaries(t *testing.T) {
	e := newTestEstimator()
	tests := []struct {
		combined float64
		want     types.MasteryLevel
	}{
		{0.0, types.LevelNovice},
		{0.39, types.LevelNovice},
		{0.40, types.LevelDeveloping},
		{0.64, types.LevelDeveloping},
		{0.65, types.LevelProficient},
		{0.84, types.LevelProficient},
		{0.85, types.LevelMastery},
		{1.0, types.LevelMastery},
	}
	for _, tt := range tests {
		if got := e.LevelFor(tt.combined); got != tt.want {
			t.Errorf("LevelFor(%.2f) = %s, want %s", tt.combined, got, tt.want)
		}
	}
}

func TestComputeBlend(t *testing.T) {
	e := newTestEstimator()
	// Quiz-only signal: combined = 0.375 * 1.0.
	state := e.Compute(uuid.New(), uuid.New(), nil, []float64{1.0}, time.Now())
	assertFloat(t, "combined", state.CombinedMastery, 0.375)
	if state.Level != types.LevelNovice {
		t.Errorf("level = %s, want %s", state.Level, types.LevelNovice)
	}
	if state.InsufficientData {
		t.Error("insufficient data should be false with quiz history")
	}
}

func TestComputeMonotoneInHistoryQuality(t *testing.T) {
	e := newTestEstimator()
	now := time.Now()
	reviews := []AtomReview{{StabilityDays: 14, DaysSinceReview: 3, ReviewCount: 6}}

	// A passed quiz on an otherwise identical history never lowers the blend.
	weaker := e.Compute(uuid.New(), uuid.New(), reviews, []float64{0, 0, 0}, now)
	stronger := e.Compute(uuid.New(), uuid.New(), reviews, []float64{0, 0, 1}, now)
	if stronger.CombinedMastery < weaker.CombinedMastery {
		t.Errorf("higher quiz score lowered mastery: %.4f < %.4f",
			stronger.CombinedMastery, weaker.CombinedMastery)
	}

	// Likewise a fresher review of the same atom.
	stale := e.Compute(uuid.New(), uuid.New(),
		[]AtomReview{{StabilityDays: 14, DaysSinceReview: 20, ReviewCount: 6}},
		[]float64{0.5}, now)
	fresh := e.Compute(uuid.New(), uuid.New(),
		[]AtomReview{{StabilityDays: 14, DaysSinceReview: 1, ReviewCount: 6}},
		[]float64{0.5}, now)
	if fresh.CombinedMastery < stale.CombinedMastery {
		t.Errorf("fresher review lowered mastery: %.4f < %.4f",
			fresh.CombinedMastery, stale.CombinedMastery)
	}
}

func TestComputeNoSignal(t *testing.T) {
	e := newTestEstimator()
	state := e.Compute(uuid.New(), uuid.New(), nil, nil, time.Now())
	assertFloat(t, "combined", state.CombinedMastery, 0)
	if !state.InsufficientData {
		t.Error("insufficient data should be true with no signal")
	}
	if state.Level != types.LevelNovice {
		t.Errorf("level = %s, want %s", state.Level, types.LevelNovice)
	}
}

// --- review application ---

func TestApplyReviewAgainCollapsesStability(t *testing.T) {
	e := newTestEstimator()
	now := time.Now()
	atom := &types.Atom{StabilityDays: 10, Difficulty: 0.5}
	e.ApplyReview(atom, Again, now)

	// S' = max(1, 10 * 0.2 * (1 - 0.5)) = 1.0
	assertFloat(t, "stability", atom.StabilityDays, 1.0)
	assertFloat(t, "difficulty", atom.Difficulty, 0.65)
	if atom.Lapses != 1 {
		t.Errorf("lapses = %d, want 1", atom.Lapses)
	}
	if atom.ReviewCount != 1 {
		t.Errorf("review count = %d, want 1", atom.ReviewCount)
	}
	if atom.LastReviewedAt == nil {
		t.Fatal("last reviewed at not set")
	}
}

func TestApplyReviewGoodGrowsStability(t *testing.T) {
	e := newTestEstimator()
	now := time.Now()
	reviewed := now
	atom := &types.Atom{StabilityDays: 4, Difficulty: 0, LastReviewedAt: &reviewed}
	e.ApplyReview(atom, Good, now)

	// Fresh atom (R = 1), zero difficulty: S' = 4 * 2.5 * 1 * 1 = 10.
	assertFloat(t, "stability", atom.StabilityDays, 10)
	assertFloat(t, "difficulty", atom.Difficulty, 0)
}

func TestApplyReviewEasyLowersDifficulty(t *testing.T) {
	e := newTestEstimator()
	now := time.Now()
	reviewed := now
	atom := &types.Atom{StabilityDays: 4, Difficulty: 0.5, LastReviewedAt: &reviewed}
	e.ApplyReview(atom, Easy, now)

	assertFloat(t, "difficulty", atom.Difficulty, 0.45)
	if atom.Lapses != 0 {
		t.Errorf("lapses = %d, want 0", atom.Lapses)
	}
}

func TestApplyReviewGrowthOrdering(t *testing.T) {
	e := newTestEstimator()
	now := time.Now()
	grow := func(r Rating) float64 {
		reviewed := now
		atom := &types.Atom{StabilityDays: 4, Difficulty: 0.3, LastReviewedAt: &reviewed}
		e.ApplyReview(atom, r, now)
		return atom.StabilityDays
	}
	hard, good, easy := grow(Hard), grow(Good), grow(Easy)
	if !(hard < good && good < easy) {
		t.Errorf("growth ordering violated: hard=%.2f good=%.2f easy=%.2f", hard, good, easy)
	}
}

func TestApplyReviewInvalidRatingIsNoop(t *testing.T) {
	e := newTestEstimator()
	atom := &types.Atom{StabilityDays: 4}
	e.ApplyReview(atom, Rating(99), time.Now())
	if atom.ReviewCount != 0 {
		t.Errorf("review count = %d, want 0", atom.ReviewCount)
	}
}
