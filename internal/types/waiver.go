package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WaiverType records on whose authority a prerequisite was waived.
type WaiverType string

const (
	WaiverInstructor  WaiverType = "instructor"
	WaiverChallenge   WaiverType = "challenge"
	WaiverExternal    WaiverType = "external"
	WaiverAccelerated WaiverType = "accelerated"
)

// Waiver satisfies a prerequisite edge without the learner reaching the
// mastery threshold. An expired waiver is inert: access evaluation treats it
// as absent.
type Waiver struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PrerequisiteEdgeID uuid.UUID         `gorm:"type:uuid;not null;index:idx_waiver_edge" json:"prerequisite_edge_id"`
	PrerequisiteEdge   *PrerequisiteEdge `gorm:"constraint:OnDelete:CASCADE;foreignKey:PrerequisiteEdgeID;references:ID" json:"prerequisite_edge,omitempty"`

	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_waiver_learner" json:"learner_id"`

	WaiverType WaiverType     `gorm:"column:waiver_type;not null" json:"waiver_type"`
	GrantedBy  string         `gorm:"column:granted_by;not null" json:"granted_by"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	Evidence   datatypes.JSON `gorm:"column:evidence;type:jsonb" json:"evidence,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Waiver) TableName() string { return "waiver" }

// ActiveAt reports whether the waiver still applies at the given instant.
func (w *Waiver) ActiveAt(now time.Time) bool {
	if w == nil {
		return false
	}
	if w.ExpiresAt == nil {
		return true
	}
	return w.ExpiresAt.After(now)
}
