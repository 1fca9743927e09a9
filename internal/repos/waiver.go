package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type WaiverRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Waiver) (*types.Waiver, error)
	GetByLearnerID(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Waiver, error)
	GetByEdgeIDs(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, edgeIDs []uuid.UUID) ([]*types.Waiver, error)
}

type waiverRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWaiverRepo(db *gorm.DB, baseLog *logger.Logger) WaiverRepo {
	return &waiverRepo{db: db, log: baseLog.With("repo", "WaiverRepo")}
}

func (r *waiverRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Waiver) (*types.Waiver, error) {
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

func (r *waiverRepo) GetByLearnerID(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Waiver, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Waiver
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

func (r *waiverRepo) GetByEdgeIDs(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, edgeIDs []uuid.UUID) ([]*types.Waiver, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Waiver
	if learnerID == uuid.Nil || len(edgeIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND prerequisite_edge_id IN ?", learnerID, edgeIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
