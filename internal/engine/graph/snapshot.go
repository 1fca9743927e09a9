package graph

import (
	"sort"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// Edge is the immutable in-memory form of an active prerequisite edge:
// learning Source requires Target at the given threshold.
type Edge struct {
	ID        uuid.UUID
	Source    uuid.UUID
	Target    uuid.UUID
	Gating    types.GatingType
	Mastery   types.MasteryType
	Threshold float64
}

// Snapshot is one published, immutable version of the prerequisite graph.
// Readers (access evaluation, ranking, sequencing) hold a snapshot for the
// duration of a computation; writers build and publish a replacement.
type Snapshot struct {
	version    uint64
	bySource   map[uuid.UUID][]Edge
	byTarget   map[uuid.UUID][]Edge
	byID       map[uuid.UUID]Edge
	centrality map[uuid.UUID]float64
	depthCap   int
	thresholds config.Graph
}

// Version is the monotonically increasing publish counter.
func (s *Snapshot) Version() uint64 { return s.version }

// EdgeCount returns the number of active edges in the snapshot.
func (s *Snapshot) EdgeCount() int { return len(s.byID) }

// EdgesFrom returns the active edges whose source is conceptID (its direct
// prerequisites). The returned slice is shared; callers must not mutate it.
func (s *Snapshot) EdgesFrom(conceptID uuid.UUID) []Edge {
	return s.bySource[conceptID]
}

// EdgeByID looks up one active edge.
func (s *Snapshot) EdgeByID(id uuid.UUID) (Edge, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Centrality returns the concept's normalized degree centrality in [0,1].
// Unknown concepts score zero.
func (s *Snapshot) Centrality(conceptID uuid.UUID) float64 {
	return s.centrality[conceptID]
}

func newSnapshot(version uint64, rows []*types.PrerequisiteEdge, cfg config.Graph) *Snapshot {
	snap := &Snapshot{
		version:    version,
		bySource:   make(map[uuid.UUID][]Edge),
		byTarget:   make(map[uuid.UUID][]Edge),
		byID:       make(map[uuid.UUID]Edge, len(rows)),
		centrality: make(map[uuid.UUID]float64),
		depthCap:   cfg.ChainDepthCap,
		thresholds: cfg,
	}
	for _, row := range rows {
		if row == nil || row.Status != types.EdgeActive {
			continue
		}
		e := Edge{
			ID:        row.ID,
			Source:    row.SourceConceptID,
			Target:    row.TargetConceptID,
			Gating:    row.GatingType,
			Mastery:   row.MasteryType,
			Threshold: thresholdFor(row.MasteryType, cfg),
		}
		snap.byID[e.ID] = e
		snap.bySource[e.Source] = append(snap.bySource[e.Source], e)
		snap.byTarget[e.Target] = append(snap.byTarget[e.Target], e)
	}
	// Deterministic iteration for tests and for stable tie-breaking.
	for _, edges := range snap.bySource {
		sortEdges(edges)
	}
	for _, edges := range snap.byTarget {
		sortEdges(edges)
	}
	snap.computeCentrality()
	return snap
}

func thresholdFor(mt types.MasteryType, cfg config.Graph) float64 {
	switch mt {
	case types.MasteryIntegration:
		return cfg.ThresholdIntegration
	case types.MasteryMastery:
		return cfg.ThresholdMastery
	default:
		return cfg.ThresholdFoundation
	}
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID.String() < edges[j].ID.String()
	})
}

// computeCentrality assigns each concept its total degree (in + out)
// normalized by the maximum degree in the snapshot. Static per snapshot;
// recomputed on every publish.
func (s *Snapshot) computeCentrality() {
	degrees := make(map[uuid.UUID]float64)
	for _, e := range s.byID {
		degrees[e.Source]++
		degrees[e.Target]++
	}
	if len(degrees) == 0 {
		return
	}
	values := make([]float64, 0, len(degrees))
	for _, d := range degrees {
		values = append(values, d)
	}
	maxDegree, err := stats.Max(values)
	if err != nil || maxDegree == 0 {
		return
	}
	for id, d := range degrees {
		s.centrality[id] = d / maxDegree
	}
}
