package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConceptStatus tracks where a concept sits in the learner-facing lifecycle.
type ConceptStatus string

const (
	ConceptToLearn   ConceptStatus = "to_learn"
	ConceptActive    ConceptStatus = "active"
	ConceptReviewing ConceptStatus = "reviewing"
	ConceptMastered  ConceptStatus = "mastered"
	ConceptStale     ConceptStatus = "stale"
)

// Concept groups atoms under one teachable idea. The knowledge-type breakdown
// (declarative/procedural/application, each 0..10) drives the sequencer's
// presentation rotation.
type Concept struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClusterID uuid.UUID `gorm:"type:uuid;index:idx_concept_cluster" json:"cluster_id"`

	Name string `gorm:"column:name;not null" json:"name"`

	Declarative float64 `gorm:"column:declarative;not null;default:0" json:"declarative"` // 0..10
	Procedural  float64 `gorm:"column:procedural;not null;default:0" json:"procedural"`   // 0..10
	Application float64 `gorm:"column:application;not null;default:0" json:"application"` // 0..10

	Status ConceptStatus `gorm:"column:status;not null;default:'to_learn';index" json:"status"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Concept) TableName() string { return "concept" }
