package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResponseEvent is the persisted telemetry log for one learner response.
// The Diagnosis value the engine hands back is ephemeral; what survives here
// is the jsonb snapshot for offline analysis.
type ResponseEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_response_learner" json:"learner_id"`
	AtomID    uuid.UUID `gorm:"type:uuid;not null;index:idx_response_atom" json:"atom_id"`
	Atom      *Atom     `gorm:"constraint:OnDelete:CASCADE;foreignKey:AtomID;references:ID" json:"atom,omitempty"`

	Correct        bool   `gorm:"column:correct;not null" json:"correct"`
	Rating         string `gorm:"column:rating" json:"rating,omitempty"` // again|hard|good|easy
	ResponseTimeMs int64  `gorm:"column:response_time_ms;not null;default:0" json:"response_time_ms"`
	SelectedOption string `gorm:"column:selected_option" json:"selected_option,omitempty"`

	Diagnosis datatypes.JSON `gorm:"column:diagnosis;type:jsonb" json:"diagnosis,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ResponseEvent) TableName() string { return "response_event" }
