package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentGap is the durable form of the one-way "gap" signal: the sequencer
// found no eligible atom for a concept. Downstream tooling (text generation,
// authoring) drains this table; the engine never calls a generator directly.
type ContentGap struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConceptID uuid.UUID `gorm:"type:uuid;not null;index:idx_gap_concept" json:"concept_id"`

	AtomType AtomType `gorm:"column:atom_type;not null" json:"atom_type"`
	Reason   string   `gorm:"column:reason" json:"reason,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContentGap) TableName() string { return "content_gap" }
