package directory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
)

type UtilisateurRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*domain.Utilisateur) ([]*domain.Utilisateur, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*domain.Utilisateur, error)
	GetByKind(ctx context.Context, tx *gorm.DB, kind domain.PersonKind) ([]*domain.Utilisateur, error)
}

type utilisateurRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUtilisateurRepo(db *gorm.DB, baseLog *logger.Logger) UtilisateurRepo {
	return &utilisateurRepo{db: db, log: baseLog.With("repo", "UtilisateurRepo")}
}

func (r *utilisateurRepo) Create(ctx context.Context, tx *gorm.DB, users []*domain.Utilisateur) ([]*domain.Utilisateur, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(users) == 0 {
		return []*domain.Utilisateur{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *utilisateurRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*domain.Utilisateur, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Utilisateur
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *utilisateurRepo) GetByKind(ctx context.Context, tx *gorm.DB, kind domain.PersonKind) ([]*domain.Utilisateur, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Utilisateur
	if err := transaction.WithContext(ctx).
		Where("kind = ?", kind).
		Order("nom, prenom").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
