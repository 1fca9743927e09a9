package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/types"
)

// AccessStatus is the aggregate gate decision for one concept.
type AccessStatus string

const (
	AccessAllowed AccessStatus = "allowed"
	AccessWarning AccessStatus = "warning"
	AccessBlocked AccessStatus = "blocked"
)

// BlockingEdge describes one unmet hard prerequisite.
type BlockingEdge struct {
	EdgeID          uuid.UUID `json:"edge_id"`
	TargetConceptID uuid.UUID `json:"target_concept_id"`
	Required        float64   `json:"required"`
	Current         float64   `json:"current"`
	Gap             float64   `json:"gap"`
}

// AccessResult aggregates the gate evaluation for one concept. Access stays
// true under soft warnings; only unmet hard edges block.
type AccessResult struct {
	ConceptID     uuid.UUID      `json:"concept_id"`
	Status        AccessStatus   `json:"status"`
	Access        bool           `json:"access"`
	BlockingEdges []BlockingEdge `json:"blocking_edges,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// MasteryLookup resolves a concept's current combined mastery. ok=false means
// no mastery record exists — callers that lazily initialize records should
// never return false.
type MasteryLookup func(conceptID uuid.UUID) (mastery float64, ok bool)

// EvaluateAccess gates conceptID against its direct prerequisites. waived
// holds the edge ids covered by a non-expired waiver for this learner. A
// missing mastery record for a prerequisite target escalates as
// InconsistencyError: it means lazy initialization upstream was skipped.
func (s *Snapshot) EvaluateAccess(conceptID uuid.UUID, mastery MasteryLookup, waived map[uuid.UUID]bool) (AccessResult, error) {
	result := AccessResult{ConceptID: conceptID, Status: AccessAllowed, Access: true}

	edges := s.bySource[conceptID]
	for _, edge := range edges {
		if waived[edge.ID] {
			continue
		}
		current, ok := mastery(edge.Target)
		if !ok {
			return AccessResult{}, &InconsistencyError{ConceptID: edge.Target, EdgeID: edge.ID}
		}
		if current >= edge.Threshold {
			continue
		}
		switch edge.Gating {
		case types.GatingHard:
			result.BlockingEdges = append(result.BlockingEdges, BlockingEdge{
				EdgeID:          edge.ID,
				TargetConceptID: edge.Target,
				Required:        edge.Threshold,
				Current:         current,
				Gap:             edge.Threshold - current,
			})
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"prerequisite %s not met: have %.0f%%, need %.0f%%",
				edge.Target, current*100, edge.Threshold*100))
		}
	}

	if len(result.BlockingEdges) > 0 {
		result.Status = AccessBlocked
		result.Access = false
	} else if len(result.Warnings) > 0 {
		result.Status = AccessWarning
	}
	return result, nil
}

// ChainEntry is one prerequisite in a depth-ordered chain.
type ChainEntry struct {
	ConceptID uuid.UUID `json:"concept_id"`
	Depth     int       `json:"depth"`
}

// Chain returns conceptID's prerequisites ordered by depth (direct
// prerequisites first) via breadth-first traversal, capped at the configured
// depth. Cycles are structurally impossible; the cap protects against
// pathologically deep graphs.
func (s *Snapshot) Chain(conceptID uuid.UUID) []ChainEntry {
	var out []ChainEntry
	seen := map[uuid.UUID]bool{conceptID: true}
	frontier := []uuid.UUID{conceptID}
	for depth := 1; depth <= s.depthCap && len(frontier) > 0; depth++ {
		var next []uuid.UUID
		var level []uuid.UUID
		for _, node := range frontier {
			for _, e := range s.bySource[node] {
				if seen[e.Target] {
					continue
				}
				seen[e.Target] = true
				level = append(level, e.Target)
				next = append(next, e.Target)
			}
		}
		sort.Slice(level, func(i, j int) bool { return level[i].String() < level[j].String() })
		for _, id := range level {
			out = append(out, ChainEntry{ConceptID: id, Depth: depth})
		}
		frontier = next
	}
	return out
}

// ChallengeWaiverEligible reports whether a challenge waiver may be granted
// for the edge: the learner must hold at least floor mastery on every
// prerequisite of the edge's target (everything beneath the requirement they
// want to test out of). Unknown edges are ineligible.
func (s *Snapshot) ChallengeWaiverEligible(edgeID uuid.UUID, mastery MasteryLookup, floor float64) bool {
	edge, ok := s.byID[edgeID]
	if !ok {
		return false
	}
	for _, entry := range s.Chain(edge.Target) {
		current, ok := mastery(entry.ConceptID)
		if !ok || current < floor {
			return false
		}
	}
	return true
}
