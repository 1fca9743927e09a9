// Package session glues the engine components together for one learner
// session: compute mastery, evaluate access, build paths, rank candidates,
// record responses, diagnose failures. It is the only surface the HTTP layer
// calls.
//
// Concurrency contract: all operations for one learner are serialized through
// a per-learner lock, so overlapping requests can never interleave mastery
// writes. Persistence happens only after a computation fully completes; an
// abandoned (cancelled) computation leaves no partial state behind.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclient "github.com/Travinkel/cortex-engine/internal/clients/redis"
	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/engine/diagnosis"
	"github.com/Travinkel/cortex-engine/internal/engine/focus"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/mastery"
	"github.com/Travinkel/cortex-engine/internal/engine/sequencer"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/platform/apierr"
	"github.com/Travinkel/cortex-engine/internal/repos"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// quizAtomTypes are the atom types whose responses feed quiz mastery.
var quizAtomTypes = map[types.AtomType]bool{
	types.AtomMultipleChoice: true,
	types.AtomNumeric:        true,
	types.AtomOrdering:       true,
}

type Deps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Atoms     repos.AtomRepo
	Concepts  repos.ConceptRepo
	Mastery   repos.MasteryStateRepo
	Responses repos.ResponseEventRepo
	Waivers   repos.WaiverRepo
	Gaps      repos.ContentGapRepo
	Graph     *graph.Graph
	Estimator *mastery.Estimator
	Diagnoser *diagnosis.Diagnoser
	Sequencer *sequencer.Sequencer
	Ranker    *focus.Ranker
	Sessions  redisclient.SessionStore
	Params    config.Params
}

type Usecases struct {
	deps Deps
	log  *logger.Logger

	// Per-learner locks serialize overlapping requests for the same learner.
	// Entries are never reclaimed; the map grows with the active learner set,
	// which is bounded in practice.
	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

func New(deps Deps) *Usecases {
	return &Usecases{
		deps:  deps,
		log:   deps.Log.With("component", "SessionUsecases"),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (u *Usecases) learnerLock(learnerID uuid.UUID) *sync.Mutex {
	u.lockMu.Lock()
	defer u.lockMu.Unlock()
	mu, ok := u.locks[learnerID]
	if !ok {
		mu = &sync.Mutex{}
		u.locks[learnerID] = mu
	}
	return mu
}

// GetOrInitMastery returns the learner's mastery state for a concept,
// lazily creating the zero-signal row on first touch.
func (u *Usecases) GetOrInitMastery(ctx context.Context, learnerID, conceptID uuid.UUID) (*types.MasteryState, error) {
	if learnerID == uuid.Nil || conceptID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("learner and concept ids are required"))
	}
	row, err := u.deps.Mastery.Get(ctx, nil, learnerID, conceptID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_mastery_failed", err)
	}
	if row != nil {
		return row, nil
	}

	state := u.deps.Estimator.Compute(learnerID, conceptID, nil, nil, time.Now())
	state.ID = uuid.New()
	state.LastSeenAt = nil // untouched until the first real observation
	if err := u.deps.Mastery.Upsert(ctx, nil, &state); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "init_mastery_failed", err)
	}
	return &state, nil
}

// RecordResponseInput is one learner answer with its telemetry.
type RecordResponseInput struct {
	LearnerID      uuid.UUID
	AtomID         uuid.UUID
	Correct        bool
	Rating         string // optional; defaults to good/again from Correct
	ResponseTimeMs int64
	SelectedOption string
	CorrectOption  string
}

// RecordResponse folds one answer into the engine: updates the atom's decay
// cache, recomputes the concept's mastery, logs the telemetry row, and, for
// wrong answers, returns a diagnosis. The whole computation runs before any
// write; all writes commit in one transaction.
func (u *Usecases) RecordResponse(ctx context.Context, in RecordResponseInput) (*types.MasteryState, *diagnosis.Diagnosis, error) {
	if in.LearnerID == uuid.Nil || in.AtomID == uuid.Nil {
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("learner and atom ids are required"))
	}

	mu := u.learnerLock(in.LearnerID)
	mu.Lock()
	defer mu.Unlock()

	atom, err := u.deps.Atoms.GetByID(ctx, nil, in.AtomID)
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "load_atom_failed", err)
	}
	if atom == nil {
		return nil, nil, apierr.New(http.StatusNotFound, "atom_not_found", nil)
	}

	rating, err := resolveRating(in.Rating, in.Correct)
	if err != nil {
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_rating", err)
	}

	now := time.Now()

	// Work on a copy so an abandoned computation leaves the loaded state alone.
	updated := *atom
	u.deps.Estimator.ApplyReview(&updated, rating, now)

	siblings, err := u.deps.Atoms.GetByConceptID(ctx, nil, atom.ConceptID)
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "load_concept_atoms_failed", err)
	}
	reviews := make([]mastery.AtomReview, 0, len(siblings))
	for _, sib := range siblings {
		current := sib
		if sib.ID == updated.ID {
			current = &updated
		}
		if current.ReviewCount == 0 {
			continue
		}
		elapsed := 0.0
		if current.LastReviewedAt != nil {
			elapsed = now.Sub(*current.LastReviewedAt).Hours() / 24
		}
		reviews = append(reviews, mastery.AtomReview{
			StabilityDays:   current.StabilityDays,
			DaysSinceReview: elapsed,
			ReviewCount:     current.ReviewCount,
		})
	}

	quizScores, err := u.quizScores(ctx, in.LearnerID, siblings, in)
	if err != nil {
		return nil, nil, err
	}

	state := u.deps.Estimator.Compute(in.LearnerID, atom.ConceptID, reviews, quizScores, now)
	prev, err := u.deps.Mastery.Get(ctx, nil, in.LearnerID, atom.ConceptID)
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "load_mastery_failed", err)
	}
	if prev != nil {
		state.ID = prev.ID
		state.Attempts = prev.Attempts
		state.Correct = prev.Correct
	} else {
		state.ID = uuid.New()
	}
	state.Attempts++
	if in.Correct {
		state.Correct++
	}

	// Diagnose against the session as it stands with this response folded in;
	// the store itself only advances once the transaction commits.
	sessionState, err := u.deps.Sessions.Get(ctx, in.LearnerID)
	if err != nil {
		u.log.Warn("Session state read failed, diagnosing without it", "learner_id", in.LearnerID, "error", err)
	}
	sessionState.Position++
	sessionState.RecentCorrect = append(sessionState.RecentCorrect, in.Correct)

	var diag *diagnosis.Diagnosis
	if !in.Correct {
		prereqs, perr := u.prereqSummary(ctx, in.LearnerID, atom.ConceptID)
		if perr != nil {
			return nil, nil, perr
		}
		d := u.deps.Diagnoser.Diagnose(diagnosis.ResponseEvent{
			AtomID:         atom.ID,
			AtomType:       atom.AtomType,
			Difficulty:     atom.Difficulty,
			StabilityDays:  atom.StabilityDays,
			Lapses:         atom.Lapses,
			ResponseTimeMs: in.ResponseTimeMs,
			SelectedOption: in.SelectedOption,
			CorrectOption:  in.CorrectOption,
		}, prereqs, diagnosis.SessionContext{
			Position:      sessionState.Position,
			RecentCorrect: sessionState.RecentCorrect,
		})
		diag = &d
	}

	var diagJSON datatypes.JSON
	if diag != nil {
		if raw, jerr := json.Marshal(diag); jerr == nil {
			diagJSON = raw
		}
	}
	event := &types.ResponseEvent{
		ID:             uuid.New(),
		LearnerID:      in.LearnerID,
		AtomID:         in.AtomID,
		Correct:        in.Correct,
		Rating:         rating.String(),
		ResponseTimeMs: in.ResponseTimeMs,
		SelectedOption: in.SelectedOption,
		Diagnosis:      diagJSON,
	}

	// Computation is complete; commit everything or nothing.
	err = u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := u.deps.Atoms.UpdateDecayState(ctx, tx, updated.ID, updated.Difficulty, updated.StabilityDays, updated.Lapses, updated.ReviewCount, *updated.LastReviewedAt); err != nil {
			return err
		}
		if err := u.deps.Mastery.Upsert(ctx, tx, &state); err != nil {
			return err
		}
		if _, err := u.deps.Responses.Create(ctx, tx, event); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "record_response_failed", err)
	}

	if _, serr := u.deps.Sessions.RecordOutcome(ctx, in.LearnerID, in.Correct); serr != nil {
		u.log.Warn("Session state update failed", "learner_id", in.LearnerID, "error", serr)
	}

	u.log.Debug("Response recorded",
		"learner_id", in.LearnerID, "atom_id", in.AtomID,
		"correct", in.Correct, "rating", rating.String(),
		"combined_mastery", state.CombinedMastery)
	return &state, diag, nil
}

// quizScores derives the concept's quiz attempt history (oldest first) from
// persisted response events on quiz-type atoms, with the in-flight response
// appended when it is itself a quiz attempt.
func (u *Usecases) quizScores(ctx context.Context, learnerID uuid.UUID, siblings []*types.Atom, in RecordResponseInput) ([]float64, error) {
	quizIDs := make([]uuid.UUID, 0, len(siblings))
	typeByID := make(map[uuid.UUID]types.AtomType, len(siblings))
	for _, sib := range siblings {
		typeByID[sib.ID] = sib.AtomType
		if quizAtomTypes[sib.AtomType] {
			quizIDs = append(quizIDs, sib.ID)
		}
	}
	events, err := u.deps.Responses.GetForAtoms(ctx, nil, learnerID, quizIDs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_quiz_history_failed", err)
	}
	scores := make([]float64, 0, len(events)+1)
	for _, ev := range events {
		if ev.Correct {
			scores = append(scores, 1)
		} else {
			scores = append(scores, 0)
		}
	}
	if quizAtomTypes[typeByID[in.AtomID]] {
		if in.Correct {
			scores = append(scores, 1)
		} else {
			scores = append(scores, 0)
		}
	}
	return scores, nil
}

func resolveRating(raw string, correct bool) (mastery.Rating, error) {
	if raw == "" {
		if correct {
			return mastery.Good, nil
		}
		return mastery.Again, nil
	}
	var rating mastery.Rating
	if err := rating.UnmarshalText([]byte(raw)); err != nil {
		return 0, err
	}
	if !correct && rating != mastery.Again {
		// A wrong answer is a lapse regardless of the self-assessment.
		return mastery.Again, nil
	}
	return rating, nil
}
