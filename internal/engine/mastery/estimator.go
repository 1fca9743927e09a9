// Package mastery converts raw review and quiz telemetry into the bounded
// [0,1] per-(learner, concept) mastery estimate the rest of the engine reads.
//
// The single numeric primitive is retrievability R(t, S) = 0.9^(t/S): the
// modeled probability of successful recall t days after the last touch of an
// atom whose stability is S days. Stability is by definition the number of
// days until retrievability decays to 90%.
package mastery

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// AtomReview is the decay state of one atom at estimation time.
type AtomReview struct {
	StabilityDays   float64
	DaysSinceReview float64
	ReviewCount     int
}

// Estimator computes mastery states. It is stateless and safe for concurrent
// use; all tunables come from the config it was built with.
type Estimator struct {
	params config.Mastery
}

func NewEstimator(params config.Mastery) *Estimator {
	return &Estimator{params: params}
}

// Retrievability returns 0.9^(t/S). Malformed inputs are clamped, never
// rejected: negative elapsed time counts as zero, stability below the
// configured floor is raised to it.
func (e *Estimator) Retrievability(elapsedDays, stabilityDays float64) float64 {
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	if stabilityDays < e.params.MinStabilityDays {
		stabilityDays = e.params.MinStabilityDays
	}
	return math.Pow(0.9, elapsedDays/stabilityDays)
}

// ReviewMastery is the weighted average of retrievability across the
// concept's atoms, weighted by min(review_count, cap) so that a handful of
// over-reviewed atoms cannot dominate the estimate. No history yields zero.
func (e *Estimator) ReviewMastery(reviews []AtomReview) float64 {
	var weightSum, acc float64
	for _, rv := range reviews {
		if rv.ReviewCount <= 0 {
			continue
		}
		w := float64(rv.ReviewCount)
		if maxW := float64(e.params.ReviewWeightCap); w > maxW {
			w = maxW
		}
		acc += w * e.Retrievability(rv.DaysSinceReview, rv.StabilityDays)
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp01(acc / weightSum)
}

// QuizMastery is the maximum of the last quiz-window attempts. A single
// strong recent result signals capability even after weak earlier attempts.
// Scores arrive oldest-first; no history yields zero.
func (e *Estimator) QuizMastery(scores []float64) float64 {
	window := e.params.QuizWindow
	if window <= 0 {
		window = 1
	}
	if len(scores) > window {
		scores = scores[len(scores)-window:]
	}
	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return clamp01(best)
}

// LevelFor maps combined mastery onto the level ladder.
func (e *Estimator) LevelFor(combined float64) types.MasteryLevel {
	switch {
	case combined >= e.params.LevelMastery:
		return types.LevelMastery
	case combined >= e.params.LevelProficient:
		return types.LevelProficient
	case combined >= e.params.LevelDeveloping:
		return types.LevelDeveloping
	default:
		return types.LevelNovice
	}
}

// Compute produces the full mastery state for one (learner, concept). It
// always returns a value: a learner with zero signal comes out at mastery 0,
// level novice, with the insufficient-data flag raised.
func (e *Estimator) Compute(learnerID, conceptID uuid.UUID, reviews []AtomReview, quizScores []float64, now time.Time) types.MasteryState {
	review := e.ReviewMastery(reviews)
	quiz := e.QuizMastery(quizScores)
	combined := clamp01(e.params.ReviewBlend*review + e.params.QuizBlend*quiz)

	seen := now.UTC()
	return types.MasteryState{
		LearnerID:        learnerID,
		ConceptID:        conceptID,
		ReviewMastery:    review,
		QuizMastery:      quiz,
		CombinedMastery:  combined,
		Level:            e.LevelFor(combined),
		InsufficientData: len(reviews) == 0 && len(quizScores) == 0,
		LastSeenAt:       &seen,
	}
}

// ApplyReview folds one review outcome into an atom's cached decay state.
// Again collapses stability toward the floor and raises difficulty; the
// successful ratings grow stability by their growth factor, damped by
// difficulty and boosted by how forgotten the atom was. Only Easy lowers
// difficulty.
func (e *Estimator) ApplyReview(atom *types.Atom, rating Rating, now time.Time) {
	if atom == nil || !rating.IsValid() {
		return
	}
	stability := atom.StabilityDays
	if stability < e.params.MinStabilityDays {
		stability = e.params.MinStabilityDays
	}
	difficulty := clamp01(atom.Difficulty)

	elapsed := 0.0
	if atom.LastReviewedAt != nil {
		elapsed = now.Sub(*atom.LastReviewedAt).Hours() / 24
	}
	retr := e.Retrievability(elapsed, stability)

	switch rating {
	case Again:
		stability = math.Max(e.params.MinStabilityDays, stability*e.params.AgainStabilityFactor*(1-difficulty))
		difficulty = math.Min(1, difficulty+e.params.DifficultyInc)
		atom.Lapses++
	default:
		stability = stability * e.growth(rating) * (1 - difficulty*0.5) * (1 + (1-retr)*0.5)
		if stability < e.params.MinStabilityDays {
			stability = e.params.MinStabilityDays
		}
		if rating == Easy {
			difficulty = math.Max(0, difficulty-e.params.DifficultyDec)
		}
	}

	reviewed := now.UTC()
	atom.StabilityDays = stability
	atom.Difficulty = difficulty
	atom.ReviewCount++
	atom.LastReviewedAt = &reviewed
}

func (e *Estimator) growth(rating Rating) float64 {
	switch rating {
	case Hard:
		return e.params.GrowthHard
	case Easy:
		return e.params.GrowthEasy
	default:
		return e.params.GrowthGood
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
