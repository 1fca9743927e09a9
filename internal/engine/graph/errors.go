package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEdgeNotFound is returned when a mutation references an unknown edge.
	ErrEdgeNotFound = errors.New("graph: edge not found")
	// ErrDuplicateEdge is returned when an identical active edge already exists.
	ErrDuplicateEdge = errors.New("graph: duplicate edge")
	// ErrSelfEdge is returned for an edge whose source and target are the same concept.
	ErrSelfEdge = errors.New("graph: concept cannot require itself")
)

// CycleError rejects an edge insertion that would close a cycle. Chain holds
// the concept ids in offending order: the proposed source, then the existing
// path from the proposed target back around to the source.
type CycleError struct {
	Source uuid.UUID
	Target uuid.UUID
	Chain  []uuid.UUID
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Chain))
	for _, id := range e.Chain {
		parts = append(parts, id.String())
	}
	return fmt.Sprintf("graph: edge %s -> %s would create cycle: %s",
		e.Source, e.Target, strings.Join(parts, " -> "))
}

// InconsistencyError flags an access evaluation that hit an edge whose target
// concept has no mastery record. That means an initialization step upstream
// was skipped; it is escalated rather than silently defaulted.
type InconsistencyError struct {
	ConceptID uuid.UUID
	EdgeID    uuid.UUID
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("graph: no mastery record for concept %s referenced by edge %s", e.ConceptID, e.EdgeID)
}
