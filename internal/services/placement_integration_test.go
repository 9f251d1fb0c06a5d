package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/data/repos"
	"github.com/stagium/backend/internal/data/repos/testutil"
	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/filestore"
)

func newPlacementService(t *testing.T, tx *gorm.DB) PlacementService {
	t.Helper()
	return newPlacementServiceWith(t, tx, nil, nil)
}

func newPlacementServiceWith(t *testing.T, tx *gorm.DB, files filestore.Store, rotationRepo repos.RotationRepo) PlacementService {
	t.Helper()
	log := testutil.Logger(t)
	if rotationRepo == nil {
		rotationRepo = repos.NewRotationRepo(tx, log)
	}
	return NewPlacementService(tx, log,
		repos.NewStageRepo(tx, log),
		repos.NewGroupeRepo(tx, log),
		rotationRepo,
		repos.NewAffectationFinaleRepo(tx, log),
		repos.NewUtilisateurRepo(tx, log),
		files, nil, nil)
}

func TestCreateAggregateGroupe(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	a := testutil.SeedStagiaire(t, ctx, tx, "grp-a@example.org")
	b := testutil.SeedStagiaire(t, ctx, tx, "grp-b@example.org")

	g1, g2 := 1, 2
	in := &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 1, 1),
		DateFin:    day(2024, 6, 30),
		AnneeStage: "2024",
		Groupes: []GroupeInput{
			{Numero: 1, Stagiaires: []uuid.UUID{a.ID}},
			{Numero: 2, Stagiaires: []uuid.UUID{b.ID}},
		},
		Rotations: []PlacementItemInput{
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 1, 1), DateFin: day(2024, 2, 29), GroupeNumero: &g1},
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 3, 1), DateFin: day(2024, 4, 30), GroupeNumero: &g2},
		},
		AffectationsFinales: []PlacementItemInput{
			{Service: "Neurologie", Superviseur: "Dr Benali", DateDebut: day(2024, 5, 1), DateFin: day(2024, 6, 30), GroupeNumero: &g1},
		},
	}

	stage, err := svc.CreateAggregate(ctx, in)
	if err != nil {
		t.Fatalf("create aggregate: %v", err)
	}
	if stage.Statut != domain.StageStatutEnAttente {
		t.Fatalf("statut = %q, want EN_ATTENTE", stage.Statut)
	}
	if len(stage.Groupes) != 2 || len(stage.Rotations) != 2 || len(stage.AffectationsFinales) != 1 {
		t.Fatalf("dependents not persisted: %d groupes, %d rotations, %d affectations",
			len(stage.Groupes), len(stage.Rotations), len(stage.AffectationsFinales))
	}

	// Rotation owners must point at the groupe rows generated in the same
	// transaction, resolved through the campaign-local numero.
	byNumero := map[int]uuid.UUID{}
	for _, g := range stage.Groupes {
		byNumero[g.Numero] = g.ID
	}
	for _, r := range stage.Rotations {
		if r.GroupeID == nil {
			t.Fatal("rotation lost its groupe owner")
		}
		if *r.GroupeID != byNumero[1] && *r.GroupeID != byNumero[2] {
			t.Fatalf("rotation groupe %s matches no created groupe", *r.GroupeID)
		}
	}
}

func TestCreateAggregateIndividuel(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	s := testutil.SeedStagiaire(t, ctx, tx, "indiv@example.org")
	in := &AggregateInput{
		Type:        domain.StageTypeIndividuel,
		StagiaireID: &s.ID,
		DateDebut:   day(2024, 1, 1),
		DateFin:     day(2024, 3, 31),
		AnneeStage:  "2024",
		Rotations: []PlacementItemInput{
			{Service: "Urgences", Superviseur: "Dr Caron", DateDebut: day(2024, 1, 1), DateFin: day(2024, 1, 31), StagiaireID: &s.ID},
		},
	}

	stage, err := svc.CreateAggregate(ctx, in)
	if err != nil {
		t.Fatalf("create aggregate: %v", err)
	}
	if stage.StagiaireID == nil || *stage.StagiaireID != s.ID {
		t.Fatal("stagiaire not recorded on the stage")
	}
	if stage.Stagiaire == nil {
		t.Fatal("stagiaire not preloaded on the detail view")
	}
}

func TestReplaceAggregateIsFullReplace(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	a := testutil.SeedStagiaire(t, ctx, tx, "rep-a@example.org")
	b := testutil.SeedStagiaire(t, ctx, tx, "rep-b@example.org")

	g1 := 1
	created, err := svc.CreateAggregate(ctx, &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 1, 1),
		DateFin:    day(2024, 6, 30),
		AnneeStage: "2024",
		Groupes:    []GroupeInput{{Numero: 1, Stagiaires: []uuid.UUID{a.ID}}},
		Rotations: []PlacementItemInput{
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 1, 1), DateFin: day(2024, 2, 29), GroupeNumero: &g1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	g7 := 7
	replaced, err := svc.ReplaceAggregate(ctx, created.ID, &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 2, 1),
		DateFin:    day(2024, 7, 31),
		AnneeStage: "2024",
		Groupes:    []GroupeInput{{Numero: 7, Stagiaires: []uuid.UUID{b.ID}}},
		AffectationsFinales: []PlacementItemInput{
			{Service: "Neurologie", Superviseur: "Dr Benali", DateDebut: day(2024, 6, 1), DateFin: day(2024, 7, 31), GroupeNumero: &g7},
		},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if replaced.ID != created.ID {
		t.Fatal("replace must keep the stage id")
	}
	if len(replaced.Rotations) != 0 {
		t.Fatalf("%d rotations survived the replace", len(replaced.Rotations))
	}
	if len(replaced.Groupes) != 1 || replaced.Groupes[0].Numero != 7 {
		t.Fatalf("groupes after replace: %+v", replaced.Groupes)
	}
	if len(replaced.AffectationsFinales) != 1 {
		t.Fatal("new affectation finale missing")
	}
	if !replaced.DateDebut.Equal(day(2024, 2, 1)) {
		t.Fatalf("stage dates not updated: %v", replaced.DateDebut)
	}
}

func TestReplaceAggregatePreservesStatut(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)
	log := testutil.Logger(t)
	stageRepo := repos.NewStageRepo(tx, log)

	s := testutil.SeedStagiaire(t, ctx, tx, "statut-keep@example.org")
	created, err := svc.CreateAggregate(ctx, &AggregateInput{
		Type:        domain.StageTypeIndividuel,
		StagiaireID: &s.ID,
		DateDebut:   day(2024, 1, 1),
		DateFin:     day(2024, 3, 31),
		AnneeStage:  "2024",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := stageRepo.UpdateStatut(ctx, tx, created.ID, domain.StageStatutAccepte, nil); err != nil {
		t.Fatalf("update statut: %v", err)
	}

	replaced, err := svc.ReplaceAggregate(ctx, created.ID, &AggregateInput{
		Type:        domain.StageTypeIndividuel,
		StagiaireID: &s.ID,
		DateDebut:   day(2024, 2, 1),
		DateFin:     day(2024, 4, 30),
		AnneeStage:  "2024",
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.Statut != domain.StageStatutAccepte {
		t.Fatalf("replace reset the statut to %q", replaced.Statut)
	}
}

func TestReplaceAggregateMissingStage(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	s := testutil.SeedStagiaire(t, ctx, tx, "rep-missing@example.org")
	_, err := svc.ReplaceAggregate(ctx, uuid.New(), &AggregateInput{
		Type:        domain.StageTypeIndividuel,
		StagiaireID: &s.ID,
		DateDebut:   day(2024, 1, 1),
		DateFin:     day(2024, 3, 31),
		AnneeStage:  "2024",
	})
	wantCode(t, err, "not_found")
}

func TestGetStageTypeMismatchIsNotFound(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	stage := testutil.SeedStage(t, ctx, tx, domain.StageTypeGroupe, nil)
	_, err := svc.GetStage(ctx, stage.ID, domain.StageTypeIndividuel)
	wantCode(t, err, "not_found")

	got, err := svc.GetStage(ctx, stage.ID, domain.StageTypeGroupe)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != stage.ID {
		t.Fatal("wrong stage returned")
	}
}

func TestDeleteStageCascades(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)
	log := testutil.Logger(t)

	a := testutil.SeedStagiaire(t, ctx, tx, "del@example.org")
	g1 := 1
	created, err := svc.CreateAggregate(ctx, &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 1, 1),
		DateFin:    day(2024, 6, 30),
		AnneeStage: "2024",
		Groupes:    []GroupeInput{{Numero: 1, Stagiaires: []uuid.UUID{a.ID}}},
		Rotations: []PlacementItemInput{
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 1, 1), DateFin: day(2024, 2, 29), GroupeNumero: &g1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteStage(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n, _ := repos.NewRotationRepo(tx, log).CountByStageID(ctx, tx, created.ID); n != 0 {
		t.Fatalf("%d rotations survived the delete", n)
	}
	if n, _ := repos.NewGroupeRepo(tx, log).CountByStageID(ctx, tx, created.ID); n != 0 {
		t.Fatalf("%d groupes survived the delete", n)
	}
	if got, _ := repos.NewStageRepo(tx, log).GetByID(ctx, tx, created.ID); got != nil {
		t.Fatal("stage row survived the delete")
	}
}

// brokenRotationRepo fails every Create once armed, forcing a mid-transaction
// failure after the scoped deletes already ran.
type brokenRotationRepo struct {
	repos.RotationRepo
	fail bool
}

func (r *brokenRotationRepo) Create(ctx context.Context, tx *gorm.DB, rotations []*domain.Rotation) ([]*domain.Rotation, error) {
	if r.fail {
		return nil, errors.New("rotation insert failed")
	}
	return r.RotationRepo.Create(ctx, tx, rotations)
}

func TestReplaceAggregateFailureRollsBackDeletes(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	broken := &brokenRotationRepo{RotationRepo: repos.NewRotationRepo(tx, log)}
	svc := newPlacementServiceWith(t, tx, nil, broken)

	a := testutil.SeedStagiaire(t, ctx, tx, "rollback@example.org")
	g1 := 1
	in := &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 1, 1),
		DateFin:    day(2024, 6, 30),
		AnneeStage: "2024",
		Groupes:    []GroupeInput{{Numero: 1, Stagiaires: []uuid.UUID{a.ID}}},
		Rotations: []PlacementItemInput{
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 1, 1), DateFin: day(2024, 2, 29), GroupeNumero: &g1},
		},
		AffectationsFinales: []PlacementItemInput{
			{Service: "Neurologie", Superviseur: "Dr Benali", DateDebut: day(2024, 5, 1), DateFin: day(2024, 6, 30), GroupeNumero: &g1},
		},
	}
	created, err := svc.CreateAggregate(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The replace deletes every dependent before re-inserting; a failure on the
	// insert side must restore the previous set, not leave the stage stripped.
	broken.fail = true
	if _, err := svc.ReplaceAggregate(ctx, created.ID, in); err == nil {
		t.Fatal("replace must fail when the rotation insert fails")
	}

	groupeRepo := repos.NewGroupeRepo(tx, log)
	rotationRepo := repos.NewRotationRepo(tx, log)
	affectationRepo := repos.NewAffectationFinaleRepo(tx, log)
	if n, _ := groupeRepo.CountByStageID(ctx, tx, created.ID); n != 1 {
		t.Fatalf("groupes after failed replace = %d, want 1", n)
	}
	if n, _ := rotationRepo.CountByStageID(ctx, tx, created.ID); n != 1 {
		t.Fatalf("rotations after failed replace = %d, want 1", n)
	}
	if n, _ := affectationRepo.CountByStageID(ctx, tx, created.ID); n != 1 {
		t.Fatalf("affectations after failed replace = %d, want 1", n)
	}
}

func TestReplaceAggregateIdenticalInputIsStable(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	svc := newPlacementService(t, tx)

	a := testutil.SeedStagiaire(t, ctx, tx, "stable@example.org")
	g1 := 1
	in := &AggregateInput{
		Type:       domain.StageTypeGroupe,
		DateDebut:  day(2024, 1, 1),
		DateFin:    day(2024, 6, 30),
		AnneeStage: "2024",
		Groupes:    []GroupeInput{{Numero: 1, Stagiaires: []uuid.UUID{a.ID}}},
		Rotations: []PlacementItemInput{
			{Service: "Cardiologie", Superviseur: "Dr Martin", DateDebut: day(2024, 1, 1), DateFin: day(2024, 2, 29), GroupeNumero: &g1},
		},
	}
	created, err := svc.CreateAggregate(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.ReplaceAggregate(ctx, created.ID, in)
	if err != nil {
		t.Fatalf("first replace: %v", err)
	}
	second, err := svc.ReplaceAggregate(ctx, created.ID, in)
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}

	if second.ID != first.ID {
		t.Fatal("replace must keep the stage id")
	}
	if len(second.Groupes) != len(first.Groupes) ||
		len(second.Rotations) != len(first.Rotations) ||
		len(second.AffectationsFinales) != len(first.AffectationsFinales) {
		t.Fatalf("dependent counts drifted across identical replaces: %d/%d/%d vs %d/%d/%d",
			len(first.Groupes), len(first.Rotations), len(first.AffectationsFinales),
			len(second.Groupes), len(second.Rotations), len(second.AffectationsFinales))
	}
	if second.Groupes[0].Numero != 1 || len(second.Groupes[0].Membres) != 1 {
		t.Fatalf("groupe content drifted: %+v", second.Groupes[0])
	}
	if second.Rotations[0].Service != "Cardiologie" || !second.Rotations[0].DateDebut.Equal(day(2024, 1, 1)) {
		t.Fatalf("rotation content drifted: %+v", second.Rotations[0])
	}
	if second.Statut != first.Statut || second.Statut != domain.StageStatutEnAttente {
		t.Fatalf("statut drifted: %q vs %q", first.Statut, second.Statut)
	}
}

func TestDeleteStageRemovesStoredDocument(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)

	files, err := filestore.New(log, t.TempDir())
	if err != nil {
		t.Fatalf("init filestore: %v", err)
	}
	svc := newPlacementServiceWith(t, tx, files, nil)

	relURL, err := files.Save([]byte("%PDF contenu"), "note.pdf")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	stage := testutil.SeedStage(t, ctx, tx, domain.StageTypeGroupe, nil)
	if err := tx.WithContext(ctx).Model(&domain.Stage{}).
		Where("id = ?", stage.ID).
		Update("note_service_path", relURL).Error; err != nil {
		t.Fatalf("record note path: %v", err)
	}

	if err := svc.DeleteStage(ctx, stage.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	abs, err := files.AbsolutePath(relURL)
	if err != nil {
		t.Fatalf("absolute path: %v", err)
	}
	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatal("stored document survived the cascade delete")
	}
}
