package placement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type AffectationFinaleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, affectations []*domain.AffectationFinale) ([]*domain.AffectationFinale, error)
	GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.AffectationFinale, error)
	DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error
	CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error)
}

type affectationFinaleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAffectationFinaleRepo(db *gorm.DB, baseLog *logger.Logger) AffectationFinaleRepo {
	return &affectationFinaleRepo{db: db, log: baseLog.With("repo", "AffectationFinaleRepo")}
}

func (r *affectationFinaleRepo) Create(ctx context.Context, tx *gorm.DB, affectations []*domain.AffectationFinale) ([]*domain.AffectationFinale, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(affectations) == 0 {
		return []*domain.AffectationFinale{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&affectations).Error; err != nil {
		return nil, err
	}
	return affectations, nil
}

func (r *affectationFinaleRepo) GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.AffectationFinale, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.AffectationFinale
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("date_debut").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *affectationFinaleRepo) DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Delete(&domain.AffectationFinale{}).Error
}

func (r *affectationFinaleRepo) CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&domain.AffectationFinale{}).
		Where("stage_id = ?", stageID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
