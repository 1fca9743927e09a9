package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type PrerequisiteEdgeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.PrerequisiteEdge) (*types.PrerequisiteEdge, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.PrerequisiteEdge, error)
	ListLive(ctx context.Context, tx *gorm.DB) ([]*types.PrerequisiteEdge, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.EdgeStatus) error
	SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type prerequisiteEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPrerequisiteEdgeRepo(db *gorm.DB, baseLog *logger.Logger) PrerequisiteEdgeRepo {
	return &prerequisiteEdgeRepo{db: db, log: baseLog.With("repo", "PrerequisiteEdgeRepo")}
}

func (r *prerequisiteEdgeRepo) Create(ctx context.Context, tx *gorm.DB, row *types.PrerequisiteEdge) (*types.PrerequisiteEdge, error) {
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

func (r *prerequisiteEdgeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.PrerequisiteEdge, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PrerequisiteEdge
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
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

// ListLive returns every edge still in the graph. Waived edges are live
// members; revoked edges are soft-deleted and excluded by gorm.
func (r *prerequisiteEdgeRepo) ListLive(ctx context.Context, tx *gorm.DB) ([]*types.PrerequisiteEdge, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PrerequisiteEdge
	if err := transaction.WithContext(ctx).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *prerequisiteEdgeRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.EdgeStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.PrerequisiteEdge{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *prerequisiteEdgeRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.PrerequisiteEdge{}).Error
}
