package placement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type StageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, stage *domain.Stage) (*domain.Stage, error)
	GetByID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.Stage, error)
	GetDetail(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.Stage, error)
	UpdateStatut(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, statut domain.StageStatut, notePath *string) error
	DeleteByID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error
}

type stageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageRepo(db *gorm.DB, baseLog *logger.Logger) StageRepo {
	return &stageRepo{db: db, log: baseLog.With("repo", "StageRepo")}
}

func (r *stageRepo) Create(ctx context.Context, tx *gorm.DB, stage *domain.Stage) (*domain.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if stage == nil {
		return nil, errors.New("nil stage")
	}
	if err := transaction.WithContext(ctx).
		Omit("Groupes", "Rotations", "AffectationsFinales", "Stagiaire").
		Create(stage).Error; err != nil {
		return nil, err
	}
	return stage, nil
}

func (r *stageRepo) GetByID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.Stage
	if err := transaction.WithContext(ctx).
		Where("id = ?", stageID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *stageRepo) GetDetail(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.Stage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.Stage
	if err := transaction.WithContext(ctx).
		Preload("Stagiaire").
		Preload("Groupes").
		Preload("Groupes.Membres").
		Preload("Groupes.Membres.Stagiaire").
		Preload("Rotations").
		Preload("AffectationsFinales").
		Where("id = ?", stageID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *stageRepo) UpdateStatut(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, statut domain.StageStatut, notePath *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{"statut": statut}
	if notePath != nil {
		updates["note_service_path"] = *notePath
	}
	res := transaction.WithContext(ctx).
		Model(&domain.Stage{}).
		Where("id = ?", stageID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stageRepo) DeleteByID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", stageID).
		Delete(&domain.Stage{}).Error
}
