// Package focus computes the urgency ("Z-score") ranking that orders the
// practice queue. Each candidate atom blends four signals: memory decay,
// graph centrality of its concept, relevance to the active goal path, and
// novelty. Ranking is deterministic: identical inputs produce the identical
// order, with ties broken by atom id.
package focus

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/mastery"
)

// Candidate is one atom eligible for ranking, with its decay state resolved
// at call time.
type Candidate struct {
	AtomID          uuid.UUID
	ConceptID       uuid.UUID
	StabilityDays   float64
	DaysSinceReview float64
	ReviewCount     int
}

// Breakdown exposes the per-signal components behind a Z-score.
type Breakdown struct {
	Decay         float64 `json:"decay"`
	Centrality    float64 `json:"centrality"`
	PathRelevance float64 `json:"path_relevance"`
	Novelty       float64 `json:"novelty"`
}

// RankedAtom is an output-only value: recomputed per request, never patched
// in place.
type RankedAtom struct {
	AtomID      uuid.UUID `json:"atom_id"`
	ConceptID   uuid.UUID `json:"concept_id"`
	ZScore      float64   `json:"z_score"`
	Breakdown   Breakdown `json:"component_breakdown"`
	Substituted bool      `json:"substituted,omitempty"` // surfaced in place of a blocked atom
}

// Context is everything one ranking call reads. Weights are fixed for the
// duration of the call.
type Context struct {
	Snapshot *graph.Snapshot
	Weights  config.Ranking
	// OnPath marks concepts on the learner's active target path.
	OnPath map[uuid.UUID]bool
	// Access resolves gate status for a concept; used by Force-Z backtracking.
	Access func(conceptID uuid.UUID) (graph.AccessResult, error)
}

// Ranker scores and orders candidates.
type Ranker struct {
	estimator *mastery.Estimator
	depthCap  int
}

func NewRanker(estimator *mastery.Estimator, depthCap int) *Ranker {
	return &Ranker{estimator: estimator, depthCap: depthCap}
}

// Score computes one candidate's Z-score and component breakdown.
func (r *Ranker) Score(c Candidate, rctx Context) RankedAtom {
	breakdown := Breakdown{
		Decay:         1 - r.estimator.Retrievability(c.DaysSinceReview, c.StabilityDays),
		Centrality:    rctx.Snapshot.Centrality(c.ConceptID),
		PathRelevance: 0,
		Novelty:       1 / float64(1+c.ReviewCount),
	}
	if rctx.OnPath[c.ConceptID] {
		breakdown.PathRelevance = 1
	}
	w := rctx.Weights
	z := w.WeightDecay*breakdown.Decay +
		w.WeightCentrality*breakdown.Centrality +
		w.WeightPath*breakdown.PathRelevance +
		w.WeightNovelty*breakdown.Novelty
	return RankedAtom{
		AtomID:    c.AtomID,
		ConceptID: c.ConceptID,
		ZScore:    z,
		Breakdown: breakdown,
	}
}

// Rank orders the candidates by descending Z-score and applies Force-Z
// backtracking: an atom whose concept is gate-blocked is never surfaced;
// the highest-Z atom among its blocking prerequisites takes its place. The
// substitution recurses when the substitute is itself blocked, bounded by
// the graph's chain depth cap.
func (r *Ranker) Rank(candidates []Candidate, rctx Context) ([]RankedAtom, error) {
	scored := make([]RankedAtom, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, r.Score(c, rctx))
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].ZScore != scored[j].ZScore {
			return scored[i].ZScore > scored[j].ZScore
		}
		return scored[i].AtomID.String() < scored[j].AtomID.String()
	})

	if rctx.Access == nil {
		return scored, nil
	}

	out := make([]RankedAtom, 0, len(scored))
	used := make(map[uuid.UUID]bool, len(scored))
	for _, item := range scored {
		if used[item.AtomID] {
			continue
		}
		pick, ok, err := r.resolve(item, scored, rctx, used, 0)
		if err != nil {
			return nil, err
		}
		if !ok || used[pick.AtomID] {
			continue
		}
		used[pick.AtomID] = true
		out = append(out, pick)
	}
	return out, nil
}

// resolve returns item when its concept is reachable, or the highest-Z
// unused atom among its blocking prerequisites, recursively.
func (r *Ranker) resolve(item RankedAtom, scored []RankedAtom, rctx Context, used map[uuid.UUID]bool, depth int) (RankedAtom, bool, error) {
	access, err := rctx.Access(item.ConceptID)
	if err != nil {
		return RankedAtom{}, false, err
	}
	if access.Status != graph.AccessBlocked {
		return item, true, nil
	}
	if depth >= r.depthCap {
		return RankedAtom{}, false, nil
	}

	blocking := make(map[uuid.UUID]bool, len(access.BlockingEdges))
	for _, be := range access.BlockingEdges {
		blocking[be.TargetConceptID] = true
	}
	// scored is already ordered best-first; the first unused match wins.
	for _, cand := range scored {
		if used[cand.AtomID] || !blocking[cand.ConceptID] {
			continue
		}
		sub, ok, err := r.resolve(cand, scored, rctx, used, depth+1)
		if err != nil {
			return RankedAtom{}, false, err
		}
		if ok {
			sub.Substituted = sub.AtomID != item.AtomID
			return sub, true, nil
		}
	}
	return RankedAtom{}, false, nil
}
