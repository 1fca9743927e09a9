// Package graph maintains the shared prerequisite graph: a directed acyclic
// set of gated edges between concepts. Mutation is serialized behind a single
// writer lock and every committed state is published as an immutable snapshot,
// so concurrent learner sessions always read a consistent graph and never see
// a partially inserted edge.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/pkg/dbctx"
	"github.com/Travinkel/cortex-engine/internal/repos"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// Mirror receives committed edge mutations for replication into an external
// graph store. Calls are best-effort; failures are logged, never propagated.
type Mirror interface {
	MirrorEdge(ctx context.Context, edge *types.PrerequisiteEdge) error
	RemoveEdge(ctx context.Context, edgeID uuid.UUID) error
}

// Graph is the single-writer owner of the prerequisite edge set.
type Graph struct {
	mu     sync.RWMutex
	snap   *Snapshot
	rows   map[uuid.UUID]*types.PrerequisiteEdge
	params config.Graph

	edgeRepo repos.PrerequisiteEdgeRepo
	mirror   Mirror
	log      *logger.Logger
}

// New builds an empty graph. Call Load to hydrate from persistence.
func New(edgeRepo repos.PrerequisiteEdgeRepo, mirror Mirror, params config.Graph, baseLog *logger.Logger) *Graph {
	return &Graph{
		snap:     newSnapshot(0, nil, params),
		rows:     make(map[uuid.UUID]*types.PrerequisiteEdge),
		params:   params,
		edgeRepo: edgeRepo,
		mirror:   mirror,
		log:      baseLog.With("component", "PrerequisiteGraph"),
	}
}

// Load replaces the in-memory edge set with the live rows from persistence
// and publishes a fresh snapshot.
func (g *Graph) Load(ctx context.Context) error {
	rows, err := g.edgeRepo.ListLive(ctx, nil)
	if err != nil {
		return fmt.Errorf("load prerequisite edges: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = make(map[uuid.UUID]*types.PrerequisiteEdge, len(rows))
	for _, row := range rows {
		g.rows[row.ID] = row
	}
	g.publishLocked()
	g.log.Info("Prerequisite graph loaded", "edges", len(rows), "version", g.snap.version)
	return nil
}

// Snapshot returns the current published snapshot. The returned value is
// immutable and safe to read concurrently.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// AddEdge inserts source -> target (learning source requires target) after a
// cycle check. The check and the insert happen under the writer lock, and the
// row is persisted before the new snapshot is published: on any failure the
// edge set is unchanged. Returns CycleError with the full offending chain if
// the edge would close a cycle.
func (g *Graph) AddEdge(dbc dbctx.Context, source, target uuid.UUID, gating types.GatingType, masteryType types.MasteryType, origin types.EdgeOrigin) (*types.PrerequisiteEdge, error) {
	if source == uuid.Nil || target == uuid.Nil {
		return nil, fmt.Errorf("graph: source and target are required")
	}
	if source == target {
		return nil, ErrSelfEdge
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, row := range g.rows {
		if row.SourceConceptID == source && row.TargetConceptID == target {
			return nil, ErrDuplicateEdge
		}
	}

	// A cycle exists iff source is already reachable from target over active
	// edges. BFS with parent tracking reconstructs the offending chain.
	if chain, found := g.snap.pathBetween(target, source); found {
		return nil, &CycleError{
			Source: source,
			Target: target,
			Chain:  append([]uuid.UUID{source}, chain...),
		}
	}

	row := &types.PrerequisiteEdge{
		ID:              uuid.New(),
		SourceConceptID: source,
		TargetConceptID: target,
		GatingType:      gating,
		MasteryType:     masteryType,
		Origin:          origin,
		Status:          types.EdgeActive,
	}
	if _, err := g.edgeRepo.Create(dbc.Ctx, dbc.Tx, row); err != nil {
		return nil, fmt.Errorf("persist prerequisite edge: %w", err)
	}

	g.rows[row.ID] = row
	g.publishLocked()
	g.log.Info("Prerequisite edge added",
		"edge_id", row.ID, "source", source, "target", target,
		"gating", gating, "mastery_type", masteryType, "version", g.snap.version)

	g.mirrorAsync(func(ctx context.Context) error { return g.mirror.MirrorEdge(ctx, row) })
	return row, nil
}

// RevokeEdge deactivates an edge and publishes the shrunken snapshot.
func (g *Graph) RevokeEdge(dbc dbctx.Context, edgeID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rows[edgeID]; !ok {
		return ErrEdgeNotFound
	}
	if err := g.edgeRepo.SoftDeleteByID(dbc.Ctx, dbc.Tx, edgeID); err != nil {
		return fmt.Errorf("revoke prerequisite edge: %w", err)
	}
	delete(g.rows, edgeID)
	g.publishLocked()
	g.log.Info("Prerequisite edge revoked", "edge_id", edgeID, "version", g.snap.version)

	g.mirrorAsync(func(ctx context.Context) error { return g.mirror.RemoveEdge(ctx, edgeID) })
	return nil
}

// MarkWaived flags an edge as carrying at least one waiver. The flag is a
// reporting marker only: gating reads per-learner waiver rows, and waived
// edges stay in the graph.
func (g *Graph) MarkWaived(dbc dbctx.Context, edgeID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, ok := g.rows[edgeID]
	if !ok {
		return ErrEdgeNotFound
	}
	if row.Status == types.EdgeWaived {
		return nil
	}
	if err := g.edgeRepo.UpdateStatus(dbc.Ctx, dbc.Tx, edgeID, types.EdgeWaived); err != nil {
		return fmt.Errorf("mark edge waived: %w", err)
	}
	row.Status = types.EdgeWaived
	return nil
}

// publishLocked rebuilds and swaps in a new snapshot. Callers hold g.mu.
func (g *Graph) publishLocked() {
	rows := make([]*types.PrerequisiteEdge, 0, len(g.rows))
	for _, row := range g.rows {
		rows = append(rows, row)
	}
	g.snap = newSnapshot(g.snap.version+1, rows, g.params)
}

func (g *Graph) mirrorAsync(fn func(context.Context) error) {
	if g.mirror == nil {
		return
	}
	go func() {
		if err := fn(context.Background()); err != nil {
			g.log.Warn("Graph mirror write failed", "error", err)
		}
	}()
}

// pathBetween returns the concept chain from `from` to `to` over active edges
// (inclusive of both endpoints) when `to` is reachable from `from`.
func (s *Snapshot) pathBetween(from, to uuid.UUID) ([]uuid.UUID, bool) {
	if from == to {
		return []uuid.UUID{from}, true
	}
	parent := map[uuid.UUID]uuid.UUID{from: from}
	queue := []uuid.UUID{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, e := range s.bySource[node] {
			next := e.Target
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = node
			if next == to {
				chain := []uuid.UUID{to}
				for cur := node; cur != from; cur = parent[cur] {
					chain = append([]uuid.UUID{cur}, chain...)
				}
				chain = append([]uuid.UUID{from}, chain...)
				return chain, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}
