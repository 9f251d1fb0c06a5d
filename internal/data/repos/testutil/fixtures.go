package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
)

func SeedStagiaire(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.Utilisateur {
	tb.Helper()
	u := &domain.Utilisateur{
		ID:     uuid.New(),
		Kind:   domain.PersonKindStagiaire,
		Nom:    "Dupont",
		Prenom: "Ali",
		Email:  email,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed stagiaire: %v", err)
	}
	return u
}

func SeedStage(tb testing.TB, ctx context.Context, tx *gorm.DB, stageType domain.StageType, stagiaireID *uuid.UUID) *domain.Stage {
	tb.Helper()
	s := &domain.Stage{
		ID:          uuid.New(),
		Type:        stageType,
		StagiaireID: stagiaireID,
		DateDebut:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateFin:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		AnneeStage:  "2024",
		Statut:      domain.StageStatutEnAttente,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed stage: %v", err)
	}
	return s
}

func SeedNoteService(tb testing.TB, ctx context.Context, tx *gorm.DB, stageID uuid.UUID, reference string) *domain.NoteService {
	tb.Helper()
	n := &domain.NoteService{
		ID:        uuid.New(),
		StageID:   stageID,
		Reference: reference,
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed note de service: %v", err)
	}
	return n
}
