package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasteryLevel buckets combined mastery for presentation and gating copy.
type MasteryLevel string

const (
	LevelNovice     MasteryLevel = "novice"
	LevelDeveloping MasteryLevel = "developing"
	LevelProficient MasteryLevel = "proficient"
	LevelMastery    MasteryLevel = "mastery"
)

// MasteryState is the per-(learner, concept) estimate maintained by the
// mastery estimator. Rows are created lazily on first observation and never
// deleted; history is retained for trend analysis.
type MasteryState struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_state,unique,priority:1" json:"learner_id"`
	ConceptID uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_state,unique,priority:2" json:"concept_id"`

	ReviewMastery    float64      `gorm:"column:review_mastery;not null;default:0" json:"review_mastery"`       // 0..1
	QuizMastery      float64      `gorm:"column:quiz_mastery;not null;default:0" json:"quiz_mastery"`           // 0..1
	CombinedMastery  float64      `gorm:"column:combined_mastery;not null;default:0" json:"combined_mastery"`   // 0..1
	Level            MasteryLevel `gorm:"column:level;not null;default:'novice'" json:"level"`
	InsufficientData bool         `gorm:"column:insufficient_data;not null;default:true" json:"insufficient_data"`

	Attempts int `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Correct  int `gorm:"column:correct;not null;default:0" json:"correct"`

	LastSeenAt *time.Time `gorm:"column:last_seen_at;index" json:"last_seen_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MasteryState) TableName() string { return "mastery_state" }
