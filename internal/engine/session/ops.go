package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/engine/diagnosis"
	"github.com/Travinkel/cortex-engine/internal/engine/focus"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/sequencer"
	"github.com/Travinkel/cortex-engine/internal/pkg/dbctx"
	"github.com/Travinkel/cortex-engine/internal/platform/apierr"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// EvaluateAccess gates a concept for a learner against the current graph
// snapshot. Mastery rows for prerequisite targets are lazily initialized, so
// a learner's very first access check never trips the consistency escalation.
func (u *Usecases) EvaluateAccess(ctx context.Context, learnerID, conceptID uuid.UUID) (graph.AccessResult, error) {
	snap := u.deps.Graph.Snapshot()

	lookup, err := u.masteryLookup(ctx, learnerID, prereqTargets(snap, conceptID))
	if err != nil {
		return graph.AccessResult{}, err
	}
	waived, err := u.activeWaivers(ctx, learnerID, snap.EdgesFrom(conceptID))
	if err != nil {
		return graph.AccessResult{}, err
	}

	result, err := snap.EvaluateAccess(conceptID, lookup, waived)
	if err != nil {
		var inc *graph.InconsistencyError
		if errors.As(err, &inc) {
			u.log.Error("Graph references a concept with no mastery record after lazy init",
				"learner_id", learnerID, "concept_id", inc.ConceptID, "edge_id", inc.EdgeID)
			return graph.AccessResult{}, apierr.New(http.StatusConflict, "graph_inconsistency", err)
		}
		return graph.AccessResult{}, apierr.New(http.StatusInternalServerError, "evaluate_access_failed", err)
	}
	return result, nil
}

// BuildLearningPath assembles the atom sequence that takes the learner from
// their current state to targetMastery on the target concept. Content gaps
// found along the way are persisted for authoring tooling, never dropped.
func (u *Usecases) BuildLearningPath(ctx context.Context, learnerID, targetConceptID uuid.UUID, targetMastery float64) (sequencer.Result, error) {
	target, err := u.deps.Concepts.GetByID(ctx, nil, targetConceptID)
	if err != nil {
		return sequencer.Result{}, apierr.New(http.StatusInternalServerError, "load_concept_failed", err)
	}
	if target == nil {
		return sequencer.Result{}, apierr.New(http.StatusNotFound, "concept_not_found",
			fmt.Errorf("concept %s not found", targetConceptID))
	}

	snap := u.deps.Graph.Snapshot()
	chain := snap.Chain(targetConceptID)

	conceptIDs := make([]uuid.UUID, 0, len(chain)+1)
	for _, entry := range chain {
		conceptIDs = append(conceptIDs, entry.ConceptID)
	}
	conceptIDs = append(conceptIDs, targetConceptID)

	atoms, err := u.deps.Atoms.GetByConceptIDs(ctx, nil, conceptIDs)
	if err != nil {
		return sequencer.Result{}, apierr.New(http.StatusInternalServerError, "load_atoms_failed", err)
	}
	atomsByConcept := make(map[uuid.UUID][]*types.Atom, len(conceptIDs))
	for _, atom := range atoms {
		atomsByConcept[atom.ConceptID] = append(atomsByConcept[atom.ConceptID], atom)
	}

	lookup, err := u.masteryLookup(ctx, learnerID, conceptIDs)
	if err != nil {
		return sequencer.Result{}, err
	}
	masteryOf := func(conceptID uuid.UUID) float64 {
		m, _ := lookup(conceptID)
		return m
	}

	result := u.deps.Sequencer.BuildPath(chain, targetConceptID, targetMastery, atomsByConcept, masteryOf, time.Now())

	if len(result.Gaps) > 0 {
		rows := make([]*types.ContentGap, 0, len(result.Gaps))
		for _, gap := range result.Gaps {
			rows = append(rows, &types.ContentGap{
				ID:        uuid.New(),
				ConceptID: gap.ConceptID,
				AtomType:  gap.AtomType,
				Reason:    gap.Reason,
			})
		}
		if _, err := u.deps.Gaps.Create(ctx, nil, rows); err != nil {
			// The path is still usable; the gap signal is best-effort durable.
			u.log.Error("Persisting content gaps failed", "learner_id", learnerID, "count", len(rows), "error", err)
		}
	}

	// A first path against a to_learn concept moves it into the active
	// lifecycle stage. Best-effort; the path itself does not depend on it.
	if target.Status == types.ConceptToLearn {
		if err := u.deps.Concepts.UpdateStatus(ctx, nil, target.ID, types.ConceptActive); err != nil {
			u.log.Warn("Concept activation failed", "concept_id", target.ID, "error", err)
		}
	}

	u.log.Info("Learning path built",
		"learner_id", learnerID, "target_concept_id", targetConceptID,
		"atoms", len(result.Atoms), "gaps", len(result.Gaps), "graph_version", snap.Version())
	return result, nil
}

// RankCandidates orders candidate atoms by urgency for the learner's next
// review block. activeGoalConceptIDs mark the learner's current targets; the
// concepts on those targets' prerequisite chains get the path-relevance boost.
func (u *Usecases) RankCandidates(ctx context.Context, learnerID uuid.UUID, candidateAtomIDs, activeGoalConceptIDs []uuid.UUID) ([]focus.RankedAtom, error) {
	if len(candidateAtomIDs) == 0 {
		return []focus.RankedAtom{}, nil
	}
	snap := u.deps.Graph.Snapshot()

	atoms, err := u.deps.Atoms.GetByIDs(ctx, nil, candidateAtomIDs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_atoms_failed", err)
	}

	now := time.Now()
	candidates := make([]focus.Candidate, 0, len(atoms))
	for _, atom := range atoms {
		elapsed := 0.0
		if atom.LastReviewedAt != nil {
			elapsed = now.Sub(*atom.LastReviewedAt).Hours() / 24
		}
		candidates = append(candidates, focus.Candidate{
			AtomID:          atom.ID,
			ConceptID:       atom.ConceptID,
			StabilityDays:   atom.StabilityDays,
			DaysSinceReview: elapsed,
			ReviewCount:     atom.ReviewCount,
		})
	}

	onPath := make(map[uuid.UUID]bool)
	for _, goal := range activeGoalConceptIDs {
		onPath[goal] = true
		for _, entry := range snap.Chain(goal) {
			onPath[entry.ConceptID] = true
		}
	}

	ranked, err := u.deps.Ranker.Rank(candidates, focus.Context{
		Snapshot: snap,
		Weights:  u.deps.Params.Ranking,
		OnPath:   onPath,
		Access: func(conceptID uuid.UUID) (graph.AccessResult, error) {
			return u.EvaluateAccess(ctx, learnerID, conceptID)
		},
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

// AddPrerequisite inserts a new edge into the live graph. A rejected cycle
// surfaces as 409 with the full would-be chain in the error.
func (u *Usecases) AddPrerequisite(ctx context.Context, source, target uuid.UUID, gating types.GatingType, masteryType types.MasteryType, origin types.EdgeOrigin) (*types.PrerequisiteEdge, error) {
	edge, err := u.deps.Graph.AddEdge(dbctx.From(ctx), source, target, gating, masteryType, origin)
	if err != nil {
		var cyc *graph.CycleError
		switch {
		case errors.As(err, &cyc):
			return nil, apierr.New(http.StatusConflict, "cycle_detected", err)
		case errors.Is(err, graph.ErrDuplicateEdge):
			return nil, apierr.New(http.StatusConflict, "duplicate_edge", err)
		case errors.Is(err, graph.ErrSelfEdge):
			return nil, apierr.New(http.StatusBadRequest, "self_edge", err)
		default:
			return nil, apierr.New(http.StatusInternalServerError, "add_edge_failed", err)
		}
	}
	return edge, nil
}

// RevokePrerequisite soft-deletes an edge and publishes the shrunken graph.
func (u *Usecases) RevokePrerequisite(ctx context.Context, edgeID uuid.UUID) error {
	if err := u.deps.Graph.RevokeEdge(dbctx.From(ctx), edgeID); err != nil {
		if errors.Is(err, graph.ErrEdgeNotFound) {
			return apierr.New(http.StatusNotFound, "edge_not_found", err)
		}
		return apierr.New(http.StatusInternalServerError, "revoke_edge_failed", err)
	}
	return nil
}

// GrantWaiverInput names the edge being waived and on whose authority.
type GrantWaiverInput struct {
	EdgeID     uuid.UUID
	LearnerID  uuid.UUID
	WaiverType types.WaiverType
	GrantedBy  string
	ExpiresAt  *time.Time
	Evidence   datatypes.JSON
}

// GrantWaiver records a waiver for one learner on one edge. Challenge waivers
// additionally require the learner to already hold the challenge floor on
// every prerequisite of the edge's target concept.
func (u *Usecases) GrantWaiver(ctx context.Context, in GrantWaiverInput) (*types.Waiver, error) {
	if in.EdgeID == uuid.Nil || in.LearnerID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("edge and learner ids are required"))
	}
	switch in.WaiverType {
	case types.WaiverInstructor, types.WaiverChallenge, types.WaiverExternal, types.WaiverAccelerated:
	default:
		return nil, apierr.New(http.StatusBadRequest, "invalid_waiver_type", fmt.Errorf("unknown waiver type %q", in.WaiverType))
	}

	snap := u.deps.Graph.Snapshot()
	edge, ok := snap.EdgeByID(in.EdgeID)
	if !ok {
		return nil, apierr.New(http.StatusNotFound, "edge_not_found", graph.ErrEdgeNotFound)
	}

	if in.WaiverType == types.WaiverChallenge {
		targets := prereqTargets(snap, edge.Target)
		targets = append(targets, edge.Target)
		lookup, err := u.masteryLookup(ctx, in.LearnerID, targets)
		if err != nil {
			return nil, err
		}
		if !snap.ChallengeWaiverEligible(in.EdgeID, lookup, u.deps.Params.Graph.ChallengeWaiverFloor) {
			return nil, apierr.New(http.StatusForbidden, "challenge_not_earned",
				fmt.Errorf("learner has not demonstrated %.0f%% on the waived chain", u.deps.Params.Graph.ChallengeWaiverFloor*100))
		}
	}

	waiver := &types.Waiver{
		ID:                 uuid.New(),
		PrerequisiteEdgeID: in.EdgeID,
		LearnerID:          in.LearnerID,
		WaiverType:         in.WaiverType,
		GrantedBy:          in.GrantedBy,
		ExpiresAt:          in.ExpiresAt,
		Evidence:           in.Evidence,
	}
	// The waiver row and the edge's waived marker commit together.
	var created *types.Waiver
	err := u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terr error
		created, terr = u.deps.Waivers.Create(ctx, tx, waiver)
		if terr != nil {
			return terr
		}
		return u.deps.Graph.MarkWaived(dbctx.From(ctx).WithTx(tx), in.EdgeID)
	})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "grant_waiver_failed", err)
	}
	u.log.Info("Waiver granted",
		"learner_id", in.LearnerID, "edge_id", in.EdgeID, "waiver_type", in.WaiverType)
	return created, nil
}

// ListMastery returns every mastery state recorded for the learner.
func (u *Usecases) ListMastery(ctx context.Context, learnerID uuid.UUID) ([]*types.MasteryState, error) {
	if learnerID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("learner id is required"))
	}
	rows, err := u.deps.Mastery.GetForLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_mastery_failed", err)
	}
	return rows, nil
}

// ListRecentResponses returns the learner's latest responses, newest first.
func (u *Usecases) ListRecentResponses(ctx context.Context, learnerID uuid.UUID, limit int) ([]*types.ResponseEvent, error) {
	if learnerID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("learner id is required"))
	}
	rows, err := u.deps.Responses.GetRecentForLearner(ctx, nil, learnerID, limit)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_responses_failed", err)
	}
	return rows, nil
}

// ListWaivers returns every waiver held by the learner.
func (u *Usecases) ListWaivers(ctx context.Context, learnerID uuid.UUID) ([]*types.Waiver, error) {
	if learnerID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_ids", fmt.Errorf("learner id is required"))
	}
	rows, err := u.deps.Waivers.GetByLearnerID(ctx, nil, learnerID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_waivers_failed", err)
	}
	return rows, nil
}

// ListContentGaps returns the most recent unresolved gap signals.
func (u *Usecases) ListContentGaps(ctx context.Context, limit int) ([]*types.ContentGap, error) {
	rows, err := u.deps.Gaps.ListRecent(ctx, nil, limit)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_gaps_failed", err)
	}
	return rows, nil
}

// masteryLookup prefetches (lazily initializing) mastery for the given
// concepts and returns a snapshot-compatible lookup over them. Concepts
// outside the prefetched set resolve through a fallback fetch-and-init so
// Force-Z recursion can reach past the first hop.
func (u *Usecases) masteryLookup(ctx context.Context, learnerID uuid.UUID, conceptIDs []uuid.UUID) (graph.MasteryLookup, error) {
	cache := make(map[uuid.UUID]float64, len(conceptIDs))

	if len(conceptIDs) > 0 {
		rows, err := u.deps.Mastery.GetForConcepts(ctx, nil, learnerID, conceptIDs)
		if err != nil {
			return nil, apierr.New(http.StatusInternalServerError, "load_mastery_failed", err)
		}
		for _, row := range rows {
			cache[row.ConceptID] = row.CombinedMastery
		}
		for _, id := range conceptIDs {
			if _, ok := cache[id]; ok {
				continue
			}
			state, err := u.GetOrInitMastery(ctx, learnerID, id)
			if err != nil {
				return nil, err
			}
			cache[id] = state.CombinedMastery
		}
	}

	return func(conceptID uuid.UUID) (float64, bool) {
		if m, ok := cache[conceptID]; ok {
			return m, true
		}
		state, err := u.GetOrInitMastery(ctx, learnerID, conceptID)
		if err != nil {
			u.log.Error("Mastery fallback fetch failed", "learner_id", learnerID, "concept_id", conceptID, "error", err)
			return 0, false
		}
		cache[conceptID] = state.CombinedMastery
		return state.CombinedMastery, true
	}, nil
}

// activeWaivers returns the edge ids among the given edges that the learner
// holds a non-expired waiver for.
func (u *Usecases) activeWaivers(ctx context.Context, learnerID uuid.UUID, edges []graph.Edge) (map[uuid.UUID]bool, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	edgeIDs := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		edgeIDs = append(edgeIDs, e.ID)
	}
	rows, err := u.deps.Waivers.GetByEdgeIDs(ctx, nil, learnerID, edgeIDs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_waivers_failed", err)
	}
	now := time.Now()
	waived := make(map[uuid.UUID]bool, len(rows))
	for _, w := range rows {
		if w.ActiveAt(now) {
			waived[w.PrerequisiteEdgeID] = true
		}
	}
	return waived, nil
}

// prereqSummary aggregates the answered concept's prerequisite mastery for
// the diagnoser.
func (u *Usecases) prereqSummary(ctx context.Context, learnerID, conceptID uuid.UUID) (diagnosis.PrereqSummary, error) {
	snap := u.deps.Graph.Snapshot()
	targets := prereqTargets(snap, conceptID)
	if len(targets) == 0 {
		return diagnosis.PrereqSummary{}, nil
	}
	lookup, err := u.masteryLookup(ctx, learnerID, targets)
	if err != nil {
		return diagnosis.PrereqSummary{}, err
	}
	values := make([]float64, 0, len(targets))
	for _, id := range targets {
		m, _ := lookup(id)
		values = append(values, m)
	}
	avg, err := stats.Mean(values)
	if err != nil {
		avg = 0
	}
	return diagnosis.PrereqSummary{PrereqCount: len(targets), AvgPrereqMastery: avg}, nil
}

func prereqTargets(snap *graph.Snapshot, conceptID uuid.UUID) []uuid.UUID {
	edges := snap.EdgesFrom(conceptID)
	targets := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		targets = append(targets, e.Target)
	}
	return targets
}
