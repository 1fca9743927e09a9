package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

type AtomRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Atom) ([]*types.Atom, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Atom, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Atom, error)
	GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.Atom, error)
	GetByConceptIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.Atom, error)
	UpdateDecayState(ctx context.Context, tx *gorm.DB, id uuid.UUID, difficulty, stabilityDays float64, lapses, reviewCount int, lastReviewedAt time.Time) error
}

type atomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAtomRepo(db *gorm.DB, baseLog *logger.Logger) AtomRepo {
	return &atomRepo{db: db, log: baseLog.With("repo", "AtomRepo")}
}

func (r *atomRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Atom) ([]*types.Atom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Atom{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *atomRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Atom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Atom
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

func (r *atomRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Atom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Atom
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *atomRepo) GetByConceptID(ctx context.Context, tx *gorm.DB, conceptID uuid.UUID) ([]*types.Atom, error) {
	return r.GetByConceptIDs(ctx, tx, []uuid.UUID{conceptID})
}

func (r *atomRepo) GetByConceptIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.Atom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Atom
	if len(conceptIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("concept_id IN ?", conceptIDs).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *atomRepo) UpdateDecayState(ctx context.Context, tx *gorm.DB, id uuid.UUID, difficulty, stabilityDays float64, lapses, reviewCount int, lastReviewedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Atom{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"difficulty":       difficulty,
			"stability_days":   stabilityDays,
			"lapses":           lapses,
			"review_count":     reviewCount,
			"last_reviewed_at": lastReviewedAt,
			"updated_at":       time.Now().UTC(),
		}).Error
}
