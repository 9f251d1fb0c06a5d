package placement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type NoteServiceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, note *domain.NoteService) (*domain.NoteService, error)
	GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.NoteService, error)
	SetValide(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, valide bool) error
	DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error
}

type noteServiceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteServiceRepo(db *gorm.DB, baseLog *logger.Logger) NoteServiceRepo {
	return &noteServiceRepo{db: db, log: baseLog.With("repo", "NoteServiceRepo")}
}

func (r *noteServiceRepo) Create(ctx context.Context, tx *gorm.DB, note *domain.NoteService) (*domain.NoteService, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if note == nil {
		return nil, errors.New("nil note de service")
	}
	if err := transaction.WithContext(ctx).Create(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

func (r *noteServiceRepo) GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.NoteService, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.NoteService
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *noteServiceRepo) SetValide(ctx context.Context, tx *gorm.DB, stageID uuid.UUID, valide bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&domain.NoteService{}).
		Where("stage_id = ?", stageID).
		Update("valide", valide)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *noteServiceRepo) DeleteByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Delete(&domain.NoteService{}).Error
}
