// Package graph replicates the relational prerequisite edge set into Neo4j
// for graph analytics and authoring tooling. Replication is best-effort and
// one-way: Postgres stays the source of truth, the engine never reads back.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/platform/neo4jdb"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// Store mirrors prerequisite edges. It satisfies the engine graph's Mirror
// interface; a nil *Store is a no-op so callers never branch.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, baseLog *logger.Logger) *Store {
	if client == nil || client.Driver == nil {
		return nil
	}
	return &Store{client: client, log: baseLog.With("component", "Neo4jPrerequisiteGraph")}
}

// MirrorEdge upserts one edge and both endpoint concept nodes.
func (s *Store) MirrorEdge(ctx context.Context, edge *types.PrerequisiteEdge) error {
	if s == nil {
		return nil
	}
	if edge == nil || edge.ID == uuid.Nil {
		return fmt.Errorf("neo4j mirror: missing edge")
	}
	session := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
	defer session.Close(ctx)

	params := map[string]any{
		"id":           edge.ID.String(),
		"source_id":    edge.SourceConceptID.String(),
		"target_id":    edge.TargetConceptID.String(),
		"gating_type":  string(edge.GatingType),
		"mastery_type": string(edge.MasteryType),
		"origin":       string(edge.Origin),
		"synced_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (src:Concept {id: $source_id})
			MERGE (tgt:Concept {id: $target_id})
			MERGE (src)-[r:REQUIRES {id: $id}]->(tgt)
			SET r.gating_type = $gating_type,
			    r.mastery_type = $mastery_type,
			    r.origin = $origin,
			    r.synced_at = $synced_at
		`, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j mirror edge: %w", err)
	}
	return nil
}

// RemoveEdge deletes the mirrored relationship by edge id.
func (s *Store) RemoveEdge(ctx context.Context, edgeID uuid.UUID) error {
	if s == nil {
		return nil
	}
	if edgeID == uuid.Nil {
		return nil
	}
	session := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH ()-[r:REQUIRES {id: $id}]->() DELETE r`,
			map[string]any{"id": edgeID.String()})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j remove edge: %w", err)
	}
	return nil
}

// Rebuild mirrors the full active edge set, batched concurrently. Used on
// startup after the in-memory graph loads so the mirror converges even if
// incremental writes were missed.
func (s *Store) Rebuild(ctx context.Context, edges []*types.PrerequisiteEdge) error {
	if s == nil || len(edges) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		s.log.Warn("neo4j schema init failed (continuing)", "error", err)
	}

	const batchWorkers = 4
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for _, edge := range edges {
		g.Go(func() error {
			return s.MirrorEdge(gctx, edge)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("neo4j rebuild: %w", err)
	}
	s.log.Info("Prerequisite graph mirrored to neo4j", "edges", len(edges))
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	session := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil)
	if err != nil {
		return err
	}
	_, _ = res.Consume(ctx)
	return nil
}
