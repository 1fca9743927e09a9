package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type ContentGapRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ContentGap) ([]*types.ContentGap, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ContentGap, error)
}

type contentGapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentGapRepo(db *gorm.DB, baseLog *logger.Logger) ContentGapRepo {
	return &contentGapRepo{db: db, log: baseLog.With("repo", "ContentGapRepo")}
}

func (r *contentGapRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ContentGap) ([]*types.ContentGap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ContentGap{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *contentGapRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ContentGap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []*types.ContentGap
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
