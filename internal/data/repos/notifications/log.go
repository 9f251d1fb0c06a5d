package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type LogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *domain.NotificationLog) (*domain.NotificationLog, error)
	GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.NotificationLog, error)
}

type logRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLogRepo(db *gorm.DB, baseLog *logger.Logger) LogRepo {
	return &logRepo{db: db, log: baseLog.With("repo", "NotificationLogRepo")}
}

func (r *logRepo) Create(ctx context.Context, tx *gorm.DB, entry *domain.NotificationLog) (*domain.NotificationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *logRepo) GetByStageID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) ([]*domain.NotificationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.NotificationLog
	if err := transaction.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
