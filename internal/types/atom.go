package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AtomType enumerates the practice-item formats the engine can schedule.
type AtomType string

const (
	AtomRecallCard     AtomType = "recall_card"
	AtomCloze          AtomType = "cloze"
	AtomMultipleChoice AtomType = "multiple_choice"
	AtomOrdering       AtomType = "ordering"
	AtomNumeric        AtomType = "numeric"
	AtomWorkedExample  AtomType = "worked_example"
)

// Atom is a single practice item. Text and tags are owned by the content
// source; the engine only maintains the decay-cache fields (Difficulty,
// StabilityDays, Lapses, ReviewCount).
type Atom struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConceptID uuid.UUID `gorm:"type:uuid;not null;index:idx_atom_concept" json:"concept_id"`
	Concept   *Concept  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConceptID;references:ID" json:"concept,omitempty"`

	AtomType AtomType `gorm:"column:atom_type;not null;index" json:"atom_type"`

	Difficulty    float64 `gorm:"column:difficulty;not null;default:0.3" json:"difficulty"`         // 0..1
	StabilityDays float64 `gorm:"column:stability_days;not null;default:1" json:"stability_days"`   // > 0
	Lapses        int     `gorm:"column:lapses;not null;default:0" json:"lapses"`
	ReviewCount   int     `gorm:"column:review_count;not null;default:0" json:"review_count"`
	QualityScore  float64 `gorm:"column:quality_score;not null;default:0.5" json:"quality_score"` // 0..1

	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at;index" json:"last_reviewed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Atom) TableName() string { return "atom" }
