// Package sequencer builds the ordered atom list that walks a learner from
// their current state to a target mastery on a target concept. Prerequisites
// come first (deepest, most foundational, at the front), presentation rotates
// across knowledge types to avoid monotony, and atoms that are independently
// due for review are woven in so spaced-repetition obligations are never
// starved by path-following.
package sequencer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/mastery"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// Gap signals that a concept needs atoms the content source has not supplied.
type Gap struct {
	ConceptID uuid.UUID      `json:"concept_id"`
	AtomType  types.AtomType `json:"atom_type"`
	Reason    string         `json:"reason"`
}

// Result is one built path. Gaps are always reported alongside the atoms,
// never swallowed.
type Result struct {
	Atoms []*types.Atom `json:"atoms"`
	Gaps  []Gap         `json:"gaps,omitempty"`
	// ConceptOrder is the visit order, deepest prerequisite first, target last.
	ConceptOrder []uuid.UUID `json:"concept_order"`
}

// rotation buckets atom types into the declarative -> conceptual ->
// procedural presentation cycle.
var rotation = [][]types.AtomType{
	{types.AtomRecallCard},
	{types.AtomMultipleChoice, types.AtomCloze},
	{types.AtomOrdering, types.AtomNumeric, types.AtomWorkedExample},
}

// Sequencer assembles paths. Stateless; safe for concurrent use.
type Sequencer struct {
	estimator *mastery.Estimator
	params    config.Sequencer
}

func New(estimator *mastery.Estimator, params config.Sequencer) *Sequencer {
	return &Sequencer{estimator: estimator, params: params}
}

// BuildPath walks the prerequisite chain for targetConceptID from deepest to
// shallowest, then the target itself, selecting atoms per concept until the
// projected mastery (current plus a fixed per-atom gain, monotone
// non-decreasing) would reach targetMastery. Atoms due for review anywhere in
// the chain are merged in.
func (s *Sequencer) BuildPath(
	chain []graph.ChainEntry,
	targetConceptID uuid.UUID,
	targetMastery float64,
	atomsByConcept map[uuid.UUID][]*types.Atom,
	masteryOf func(uuid.UUID) float64,
	now time.Time,
) Result {
	if targetMastery <= 0 || targetMastery > 1 {
		targetMastery = 0.85
	}

	// Deepest first, then target. Chain entries arrive shallow-first.
	order := make([]uuid.UUID, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		order = append(order, chain[i].ConceptID)
	}
	order = append(order, targetConceptID)

	result := Result{ConceptOrder: order}
	selected := make(map[uuid.UUID]bool)

	for _, conceptID := range order {
		current := masteryOf(conceptID)
		if current >= targetMastery {
			continue
		}
		atoms := atomsByConcept[conceptID]
		if len(atoms) == 0 {
			result.Gaps = append(result.Gaps, Gap{
				ConceptID: conceptID,
				AtomType:  types.AtomRecallCard,
				Reason:    "no atoms available for concept",
			})
			continue
		}

		picked := s.rotate(atoms, current, targetMastery)
		for _, atom := range picked {
			if selected[atom.ID] {
				continue
			}
			selected[atom.ID] = true
			result.Atoms = append(result.Atoms, atom)
		}
		projected := current + float64(len(picked))*s.params.PerAtomGain
		if projected < targetMastery {
			result.Gaps = append(result.Gaps, Gap{
				ConceptID: conceptID,
				AtomType:  s.missingType(atoms),
				Reason:    "insufficient atoms to reach target mastery",
			})
		}
	}

	due := s.dueAtoms(atomsByConcept, selected, now)
	result.Atoms = weave(result.Atoms, due)

	if limit := s.params.MaxAtomsPerPath; limit > 0 && len(result.Atoms) > limit {
		result.Atoms = result.Atoms[:limit]
	}
	return result
}

// rotate selects atoms for one concept in a deterministic round-robin over
// the knowledge-type buckets, stopping once the projected mastery would reach
// the target.
func (s *Sequencer) rotate(atoms []*types.Atom, current, target float64) []*types.Atom {
	needed := 0
	if gain := s.params.PerAtomGain; gain > 0 {
		for projected := current; projected < target; projected += gain {
			needed++
		}
	}
	if needed == 0 {
		return nil
	}

	buckets := make([][]*types.Atom, len(rotation))
	for i, bucket := range rotation {
		for _, atom := range atoms {
			for _, at := range bucket {
				if atom.AtomType == at {
					buckets[i] = append(buckets[i], atom)
				}
			}
		}
		sort.Slice(buckets[i], func(a, b int) bool {
			return buckets[i][a].ID.String() < buckets[i][b].ID.String()
		})
	}

	var picked []*types.Atom
	cursors := make([]int, len(buckets))
	for len(picked) < needed {
		advanced := false
		for i := range buckets {
			if len(picked) >= needed {
				break
			}
			if cursors[i] < len(buckets[i]) {
				picked = append(picked, buckets[i][cursors[i]])
				cursors[i]++
				advanced = true
			}
		}
		if !advanced {
			break // all buckets exhausted
		}
	}
	return picked
}

// missingType names the first rotation bucket the concept has no atoms for;
// used as the desired type on gap signals.
func (s *Sequencer) missingType(atoms []*types.Atom) types.AtomType {
	present := make(map[types.AtomType]bool, len(atoms))
	for _, atom := range atoms {
		present[atom.AtomType] = true
	}
	for _, bucket := range rotation {
		has := false
		for _, at := range bucket {
			if present[at] {
				has = true
			}
		}
		if !has {
			return bucket[0]
		}
	}
	return types.AtomRecallCard
}

// dueAtoms collects atoms whose retrievability has dropped below the review
// threshold, ordered most-forgotten first with id as tie-break.
func (s *Sequencer) dueAtoms(atomsByConcept map[uuid.UUID][]*types.Atom, selected map[uuid.UUID]bool, now time.Time) []*types.Atom {
	var due []*types.Atom
	for _, atoms := range atomsByConcept {
		for _, atom := range atoms {
			if selected[atom.ID] || atom.ReviewCount == 0 || atom.LastReviewedAt == nil {
				continue
			}
			elapsed := now.Sub(*atom.LastReviewedAt).Hours() / 24
			if s.estimator.Retrievability(elapsed, atom.StabilityDays) < s.params.DueRetrievability {
				due = append(due, atom)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ri := retr(s.estimator, due[i], now)
		rj := retr(s.estimator, due[j], now)
		if ri != rj {
			return ri < rj
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	return due
}

func retr(e *mastery.Estimator, atom *types.Atom, now time.Time) float64 {
	if atom.LastReviewedAt == nil {
		return 1
	}
	return e.Retrievability(now.Sub(*atom.LastReviewedAt).Hours()/24, atom.StabilityDays)
}

// weave interleaves one due atom after every two path atoms, appending any
// remainder, so review obligations surface throughout the session instead of
// piling up at the end.
func weave(path, due []*types.Atom) []*types.Atom {
	if len(due) == 0 {
		return path
	}
	out := make([]*types.Atom, 0, len(path)+len(due))
	di := 0
	for i, atom := range path {
		out = append(out, atom)
		if (i+1)%2 == 0 && di < len(due) {
			out = append(out, due[di])
			di++
		}
	}
	out = append(out, due[di:]...)
	return out
}
