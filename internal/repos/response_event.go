package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type ResponseEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ResponseEvent) (*types.ResponseEvent, error)
	GetRecentForLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, limit int) ([]*types.ResponseEvent, error)
	GetForAtoms(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, atomIDs []uuid.UUID) ([]*types.ResponseEvent, error)
}

type responseEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseEventRepo(db *gorm.DB, baseLog *logger.Logger) ResponseEventRepo {
	return &responseEventRepo{db: db, log: baseLog.With("repo", "ResponseEventRepo")}
}

func (r *responseEventRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ResponseEvent) (*types.ResponseEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *responseEventRepo) GetRecentForLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, limit int) ([]*types.ResponseEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ResponseEvent
	if learnerID == uuid.Nil {
		return results, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseEventRepo) GetForAtoms(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, atomIDs []uuid.UUID) ([]*types.ResponseEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ResponseEvent
	if learnerID == uuid.Nil || len(atomIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND atom_id IN ?", learnerID, atomIDs).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
