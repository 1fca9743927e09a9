package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type MasteryStateRepo interface {
	Get(ctx context.Context, tx *gorm.DB, learnerID, conceptID uuid.UUID) (*types.MasteryState, error)
	GetForLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.MasteryState, error)
	GetForConcepts(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, conceptIDs []uuid.UUID) ([]*types.MasteryState, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.MasteryState) error
}

type masteryStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryStateRepo(db *gorm.DB, baseLog *logger.Logger) MasteryStateRepo {
	return &masteryStateRepo{db: db, log: baseLog.With("repo", "MasteryStateRepo")}
}

func (r *masteryStateRepo) Get(ctx context.Context, tx *gorm.DB, learnerID, conceptID uuid.UUID) (*types.MasteryState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if learnerID == uuid.Nil || conceptID == uuid.Nil {
		return nil, nil
	}
	var row types.MasteryState
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND concept_id = ?", learnerID, conceptID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *masteryStateRepo) GetForLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.MasteryState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.MasteryState
	if learnerID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *masteryStateRepo) GetForConcepts(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, conceptIDs []uuid.UUID) ([]*types.MasteryState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.MasteryState
	if learnerID == uuid.Nil || len(conceptIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND concept_id IN ?", learnerID, conceptIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *masteryStateRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.MasteryState) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.LearnerID == uuid.Nil || row.ConceptID == uuid.Nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "learner_id"}, {Name: "concept_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"review_mastery", "quiz_mastery", "combined_mastery", "level",
				"insufficient_data", "attempts", "correct", "last_seen_at", "updated_at",
			}),
		}).
		Create(row).Error
}
