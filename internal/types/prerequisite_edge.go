package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GatingType controls whether an unmet prerequisite blocks access (hard) or
// only warns (soft).
type GatingType string

const (
	GatingSoft GatingType = "soft"
	GatingHard GatingType = "hard"
)

// MasteryType names the mastery threshold a prerequisite demands.
type MasteryType string

const (
	MasteryFoundation  MasteryType = "foundation"  // 0.40
	MasteryIntegration MasteryType = "integration" // 0.65
	MasteryMastery     MasteryType = "mastery"     // 0.85
)

// EdgeOrigin records how a prerequisite edge entered the graph.
type EdgeOrigin string

const (
	OriginExplicit EdgeOrigin = "explicit"
	OriginTag      EdgeOrigin = "tag"
	OriginInferred EdgeOrigin = "inferred"
	OriginImported EdgeOrigin = "imported"
)

// EdgeStatus is active or waived. Revoked edges are soft-deleted.
type EdgeStatus string

const (
	EdgeActive EdgeStatus = "active"
	EdgeWaived EdgeStatus = "waived"
)

// PrerequisiteEdge states that learning SourceConceptID requires
// TargetConceptID first. The active edge set must stay acyclic; the graph
// engine enforces this before any row is written.
type PrerequisiteEdge struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SourceConceptID uuid.UUID `gorm:"type:uuid;not null;index:idx_prereq_edge,unique,priority:1" json:"source_concept_id"`
	TargetConceptID uuid.UUID `gorm:"type:uuid;not null;index:idx_prereq_edge,unique,priority:2" json:"target_concept_id"`

	GatingType  GatingType  `gorm:"column:gating_type;not null" json:"gating_type"`
	MasteryType MasteryType `gorm:"column:mastery_type;not null" json:"mastery_type"`
	Origin      EdgeOrigin  `gorm:"column:origin;not null;default:'explicit'" json:"origin"`
	Status      EdgeStatus  `gorm:"column:status;not null;default:'active';index" json:"status"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PrerequisiteEdge) TableName() string { return "prerequisite_edge" }
