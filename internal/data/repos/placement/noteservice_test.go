package placement_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/stagium/backend/internal/data/repos/placement"
	"github.com/stagium/backend/internal/data/repos/testutil"
	"github.com/stagium/backend/internal/domain"
)

func TestNoteServiceGetByStageID(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := placement.NewNoteServiceRepo(tx, testutil.Logger(t))

	stage := testutil.SeedStage(t, ctx, tx, domain.StageTypeGroupe, nil)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	note, err := repo.GetByStageID(ctx, tx, stage.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if note == nil || note.Reference != "NS/1234 2024" {
		t.Fatalf("got %+v", note)
	}
	if note.Valide {
		t.Fatal("fresh note must not be valide")
	}

	missing, err := repo.GetByStageID(ctx, tx, uuid.New())
	if err != nil {
		t.Fatalf("missing note must not error: %v", err)
	}
	if missing != nil {
		t.Fatalf("got %+v, want nil", missing)
	}
}

func TestNoteServiceSetValide(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := placement.NewNoteServiceRepo(tx, testutil.Logger(t))

	stage := testutil.SeedStage(t, ctx, tx, domain.StageTypeIndividuel, nil)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/42 2024")

	if err := repo.SetValide(ctx, tx, stage.ID, true); err != nil {
		t.Fatalf("set valide: %v", err)
	}
	note, _ := repo.GetByStageID(ctx, tx, stage.ID)
	if !note.Valide {
		t.Fatal("valide flag not persisted")
	}
}
