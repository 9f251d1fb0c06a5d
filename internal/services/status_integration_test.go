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

type captureDispatcher struct {
	reqs []DispatchRequest
}

func (d *captureDispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchReport {
	d.reqs = append(d.reqs, req)
	return DispatchReport{Total: len(req.Recipients), Sent: len(req.Recipients)}
}

type statusFixture struct {
	svc        StatusService
	files      filestore.Store
	dispatcher *captureDispatcher
	noteRepo   repos.NoteServiceRepo
	stageRepo  repos.StageRepo
}

func newStatusFixture(t *testing.T, tx *gorm.DB, extracted string) *statusFixture {
	t.Helper()
	log := testutil.Logger(t)

	files, err := filestore.New(log, t.TempDir())
	if err != nil {
		t.Fatalf("init filestore: %v", err)
	}
	dispatcher := &captureDispatcher{}
	stageRepo := repos.NewStageRepo(tx, log)
	noteRepo := repos.NewNoteServiceRepo(tx, log)

	svc := NewStatusService(tx, log,
		stageRepo,
		repos.NewGroupeRepo(tx, log),
		repos.NewAffectationFinaleRepo(tx, log),
		noteRepo,
		repos.NewUtilisateurRepo(tx, log),
		NewDocRefValidator(log, cannedExtractor{text: extracted}),
		files, dispatcher, nil)

	return &statusFixture{svc: svc, files: files, dispatcher: dispatcher, noteRepo: noteRepo, stageRepo: stageRepo}
}

func storedFileCount(t *testing.T, files filestore.Store) int {
	t.Helper()
	entries, err := os.ReadDir(files.Root())
	if err != nil {
		t.Fatalf("read upload root: %v", err)
	}
	return len(entries)
}

func seedAssignedStage(t *testing.T, ctx context.Context, tx *gorm.DB) (*domain.Stage, *domain.Utilisateur) {
	t.Helper()
	stagiaire := testutil.SeedStagiaire(t, ctx, tx, "assigned@example.org")
	stage := testutil.SeedStage(t, ctx, tx, domain.StageTypeIndividuel, &stagiaire.ID)
	aff := &domain.AffectationFinale{
		StageID:     stage.ID,
		Service:     "Neurologie",
		Superviseur: "Dr Benali",
		DateDebut:   stage.DateDebut,
		DateFin:     stage.DateFin,
		StagiaireID: &stagiaire.ID,
	}
	if err := tx.WithContext(ctx).Create(aff).Error; err != nil {
		t.Fatalf("seed affectation: %v", err)
	}
	return stage, stagiaire
}

func pdfUpload(data string) *Upload {
	return &Upload{Filename: "note.pdf", Size: int64(len(data)), ContentType: "application/pdf", Data: []byte(data)}
}

func TestChangeStatusAccepte(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "Réf. Système: NS/1234 2024")

	stage, stagiaire := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	result, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, pdfUpload("%PDF contenu"))
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if result.Stage.Statut != domain.StageStatutAccepte {
		t.Fatalf("statut = %q, want ACCEPTE", result.Stage.Statut)
	}
	if result.Stage.NoteServicePath == "" {
		t.Fatal("note_service_path not recorded")
	}
	if storedFileCount(t, f.files) != 1 {
		t.Fatal("accepted document not stored")
	}

	note, _ := f.noteRepo.GetByStageID(ctx, tx, stage.ID)
	if !note.Valide {
		t.Fatal("note de service not marked valide")
	}

	if len(f.dispatcher.reqs) != 1 {
		t.Fatalf("%d dispatches, want 1", len(f.dispatcher.reqs))
	}
	req := f.dispatcher.reqs[0]
	if req.Outcome != OutcomeAccepte {
		t.Fatalf("outcome = %q", req.Outcome)
	}
	if len(req.Recipients) != 1 || req.Recipients[0].ID != stagiaire.ID {
		t.Fatalf("recipients = %+v", req.Recipients)
	}
	if req.Attachment == nil || req.Attachment.Filename != "note.pdf" {
		t.Fatal("accepted mail must attach the document")
	}
	if result.Notifications.Sent != 1 || result.Notifications.Total != 1 {
		t.Fatalf("notification report = %+v", result.Notifications)
	}
}

func TestChangeStatusAccepteReferenceMismatch(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "Réf. Système: NS/9999 2024")

	stage, _ := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	_, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, pdfUpload("%PDF contenu"))
	wantCode(t, err, "reference_mismatch")

	got, _ := f.stageRepo.GetByID(ctx, tx, stage.ID)
	if got.Statut != domain.StageStatutEnAttente {
		t.Fatalf("statut changed to %q on a rejected document", got.Statut)
	}
	if storedFileCount(t, f.files) != 0 {
		t.Fatal("rejected upload was retained")
	}
	if len(f.dispatcher.reqs) != 0 {
		t.Fatal("no notification may fire on a failed transition")
	}
}

func TestChangeStatusAccepteMissingFile(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "")

	stage, _ := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	_, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, nil)
	wantCode(t, err, "missing_file")
}

func TestChangeStatusAccepteMissingReference(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "Réf. Système: NS/1234 2024")

	stage, _ := seedAssignedStage(t, ctx, tx)
	// No note de service row at all.

	_, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, pdfUpload("%PDF contenu"))
	wantCode(t, err, "missing_reference")
	if storedFileCount(t, f.files) != 0 {
		t.Fatal("upload retained without an expected reference")
	}
}

func TestChangeStatusAccepteBadExtension(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "")

	stage, _ := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	up := &Upload{Filename: "note.txt", Size: 4, ContentType: "text/plain", Data: []byte("text")}
	_, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, up)
	wantCode(t, err, "bad_file")
}

func TestChangeStatusAccepteDocxSkipsExtraction(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	// Extractor would report a mismatch; DOCX must bypass it entirely.
	f := newStatusFixture(t, tx, "Réf. Système: NS/9999 2024")

	stage, _ := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	up := &Upload{Filename: "note.docx", Size: 8, ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: []byte("PK\x03\x04docx")}
	result, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, up)
	if err != nil {
		t.Fatalf("docx acceptance: %v", err)
	}
	if result.Stage.Statut != domain.StageStatutAccepte {
		t.Fatalf("statut = %q", result.Stage.Statut)
	}
}

func TestChangeStatusRefuseDiscardsUpload(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "")

	stage, _ := seedAssignedStage(t, ctx, tx)

	result, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutRefuse, pdfUpload("%PDF ignore"))
	if err != nil {
		t.Fatalf("refuse: %v", err)
	}
	if result.Stage.Statut != domain.StageStatutRefuse {
		t.Fatalf("statut = %q, want REFUSE", result.Stage.Statut)
	}
	if storedFileCount(t, f.files) != 0 {
		t.Fatal("upload must be discarded on refusal")
	}
	if len(f.dispatcher.reqs) != 1 || f.dispatcher.reqs[0].Outcome != OutcomeRefuse {
		t.Fatalf("dispatches = %+v", f.dispatcher.reqs)
	}
	if f.dispatcher.reqs[0].Attachment != nil {
		t.Fatal("refusal mail must not carry an attachment")
	}
}

func TestChangeStatusRejectsInvalidStatut(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "")

	_, err := f.svc.ChangeStatus(ctx, uuid.New(), domain.StageStatutEnAttente, nil)
	wantCode(t, err, "invalid_payload")
}

func TestChangeStatusMissingStage(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "")

	_, err := f.svc.ChangeStatus(ctx, uuid.New(), domain.StageStatutRefuse, nil)
	wantCode(t, err, "not_found")
}

func TestChangeStatusIsTerminal(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	f := newStatusFixture(t, tx, "Réf. Système: NS/1234 2024")

	stage, _ := seedAssignedStage(t, ctx, tx)
	testutil.SeedNoteService(t, ctx, tx, stage.ID, "NS/1234 2024")

	if _, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, pdfUpload("%PDF contenu")); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The stage is decided; neither transition may run again.
	_, err := f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutRefuse, nil)
	wantCode(t, err, "invalid_payload")
	_, err = f.svc.ChangeStatus(ctx, stage.ID, domain.StageStatutAccepte, pdfUpload("%PDF contenu"))
	wantCode(t, err, "invalid_payload")

	got, _ := f.stageRepo.GetByID(ctx, tx, stage.ID)
	if got.Statut != domain.StageStatutAccepte {
		t.Fatalf("statut = %q after rejected re-transition, want ACCEPTE", got.Statut)
	}
	note, _ := f.noteRepo.GetByStageID(ctx, tx, stage.ID)
	if !note.Valide {
		t.Fatal("note de service lost its valide flag")
	}
	if got.NoteServicePath == "" {
		t.Fatal("note_service_path cleared by a rejected re-transition")
	}
}

// flakyStageRepo serves the initial read then fails every later GetByID,
// simulating a read failure after the transition already committed.
type flakyStageRepo struct {
	repos.StageRepo
	calls    int
	failFrom int
}

func (r *flakyStageRepo) GetByID(ctx context.Context, tx *gorm.DB, stageID uuid.UUID) (*domain.Stage, error) {
	r.calls++
	if r.calls >= r.failFrom {
		return nil, errors.New("read replica unavailable")
	}
	return r.StageRepo.GetByID(ctx, tx, stageID)
}

func TestChangeStatusSurvivesPostCommitReadFailure(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)

	files, err := filestore.New(log, t.TempDir())
	if err != nil {
		t.Fatalf("init filestore: %v", err)
	}
	dispatcher := &captureDispatcher{}
	flaky := &flakyStageRepo{StageRepo: repos.NewStageRepo(tx, log), failFrom: 2}

	svc := NewStatusService(tx, log,
		flaky,
		repos.NewGroupeRepo(tx, log),
		repos.NewAffectationFinaleRepo(tx, log),
		repos.NewNoteServiceRepo(tx, log),
		repos.NewUtilisateurRepo(tx, log),
		NewDocRefValidator(log, cannedExtractor{}),
		files, dispatcher, nil)

	stage, _ := seedAssignedStage(t, ctx, tx)

	result, err := svc.ChangeStatus(ctx, stage.ID, domain.StageStatutRefuse, nil)
	if err != nil {
		t.Fatalf("a committed transition must not surface the re-read failure: %v", err)
	}
	if result.Stage.Statut != domain.StageStatutRefuse {
		t.Fatalf("returned statut = %q, want REFUSE", result.Stage.Statut)
	}

	got, err := repos.NewStageRepo(tx, log).GetByID(ctx, tx, stage.ID)
	if err != nil {
		t.Fatalf("verify read: %v", err)
	}
	if got.Statut != domain.StageStatutRefuse {
		t.Fatalf("persisted statut = %q, want REFUSE", got.Statut)
	}
	if len(dispatcher.reqs) != 1 || dispatcher.reqs[0].Outcome != OutcomeRefuse {
		t.Fatalf("dispatches = %+v", dispatcher.reqs)
	}
}
