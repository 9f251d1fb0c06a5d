package placement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type RotationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rotations []*domain.Rotation) ([]*domain.Rotation, error)
	GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.Rotation, error)
	DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error
	CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error)
}

type rotationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRotationRepo(db *gorm.DB, baseLog *logger.Logger) RotationRepo {
	return &rotationRepo{db: db, log: baseLog.With("repo", "RotationRepo")}
}

func (r *rotationRepo) Create(ctx context.Context, tx *gorm.DB, rotations []*domain.Rotation) ([]*domain.Rotation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rotations) == 0 {
		return []*domain.Rotation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rotations).Error; err != nil {
		return nil, err
	}
	return rotations, nil
}

func (r *rotationRepo) GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.Rotation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Rotation
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("date_debut").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *rotationRepo) DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Delete(&domain.Rotation{}).Error
}

func (r *rotationRepo) CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&domain.Rotation{}).
		Where("stage_id = ?", stageID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
