package placement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type GroupeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, groupes []*domain.Groupe) ([]*domain.Groupe, error)
	GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.Groupe, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, groupeIDs []uuid.UUID) ([]*domain.Groupe, error)
	DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error
	CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error)
}

type groupeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupeRepo(db *gorm.DB, baseLog *logger.Logger) GroupeRepo {
	return &groupeRepo{db: db, log: baseLog.With("repo", "GroupeRepo")}
}

func (r *groupeRepo) Create(ctx context.Context, tx *gorm.DB, groupes []*domain.Groupe) ([]*domain.Groupe, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(groupes) == 0 {
		return []*domain.Groupe{}, nil
	}
	// Membership rows ride along through the association so groupe ids resolve first.
	if err := transaction.WithContext(ctx).Create(&groupes).Error; err != nil {
		return nil, err
	}
	return groupes, nil
}

func (r *groupeRepo) GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.Groupe, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Groupe
	if err := transaction.WithContext(ctx).
		Preload("Membres").
		Preload("Membres.Stagiaire").
		Where("stage_id = ?", stageID).
		Order("numero").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *groupeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, groupeIDs []uuid.UUID) ([]*domain.Groupe, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Groupe
	if len(groupeIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("Membres").
		Preload("Membres.Stagiaire").
		Where("id IN ?", groupeIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *groupeRepo) DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Memberships first: they hang off the groupe ids being removed.
	sub := transaction.WithContext(ctx).
		Model(&domain.Groupe{}).
		Select("id").
		Where("stage_id = ?", stageID)
	if err := transaction.WithContext(ctx).
		Where("groupe_id IN (?)", sub).
		Delete(&domain.GroupeStagiaire{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Delete(&domain.Groupe{}).Error
}

func (r *groupeRepo) CountByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&domain.Groupe{}).
		Where("stage_id = ?", stageID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
