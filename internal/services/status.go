package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/clients/redis"
	"github.com/stagium/backend/internal/data/repos"
	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/apierr"
	"github.com/stagium/backend/internal/platform/filestore"
	"github.com/stagium/backend/internal/platform/logger"
	"github.com/stagium/backend/internal/platform/sendgrid"
)

const maxUploadBytes = 5 << 20

// Upload carries the supporting document of a status change request.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Data        []byte
}

type StatusChangeResult struct {
	Stage         *domain.Stage  `json:"stage"`
	Notifications DispatchReport `json:"notifications"`
}

// StatusService drives EN_ATTENTE -> {ACCEPTE, REFUSE}. Acceptance is gated by
// the uploaded document carrying the NoteService reference; both transitions
// are terminal in this flow.
type StatusService interface {
	ChangeStatus(ctx context.Context, stageID uuid.UUID, newStatut domain.StageStatut, up *Upload) (*StatusChangeResult, error)
}

type statusService struct {
	db              *gorm.DB
	log             *logger.Logger
	stageRepo       repos.StageRepo
	groupeRepo      repos.GroupeRepo
	affectationRepo repos.AffectationFinaleRepo
	noteRepo        repos.NoteServiceRepo
	utilisateurRepo repos.UtilisateurRepo
	docref          DocRefValidator
	files           filestore.Store
	dispatcher      Dispatcher
	cache           redis.StageCache
}

func NewStatusService(
	db *gorm.DB,
	log *logger.Logger,
	stageRepo repos.StageRepo,
	groupeRepo repos.GroupeRepo,
	affectationRepo repos.AffectationFinaleRepo,
	noteRepo repos.NoteServiceRepo,
	utilisateurRepo repos.UtilisateurRepo,
	docref DocRefValidator,
	files filestore.Store,
	dispatcher Dispatcher,
	cache redis.StageCache,
) StatusService {
	return &statusService{
		db:              db,
		log:             log.With("service", "StatusService"),
		stageRepo:       stageRepo,
		groupeRepo:      groupeRepo,
		affectationRepo: affectationRepo,
		noteRepo:        noteRepo,
		utilisateurRepo: utilisateurRepo,
		docref:          docref,
		files:           files,
		dispatcher:      dispatcher,
		cache:           cache,
	}
}

func (s *statusService) ChangeStatus(ctx context.Context, stageID uuid.UUID, newStatut domain.StageStatut, up *Upload) (*StatusChangeResult, error) {
	if newStatut != domain.StageStatutAccepte && newStatut != domain.StageStatutRefuse {
		return nil, apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("unknown statut %q", newStatut))
	}

	stage, err := s.stageRepo.GetByID(ctx, nil, stageID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if stage == nil {
		return nil, apierr.NotFound(fmt.Errorf("stage %s not found", stageID))
	}
	// ACCEPTE and REFUSE are terminal: a stage is decided exactly once.
	if stage.Statut != domain.StageStatutEnAttente {
		return nil, apierr.BadRequest(apierr.CodeInvalidPayload,
			fmt.Errorf("stage %s is already %s", stageID, stage.Statut))
	}

	var newPath string
	if newStatut == domain.StageStatutAccepte {
		newPath, err = s.acceptDocument(ctx, stageID, up)
		if err != nil {
			// The upload is never retained on a rejected acceptance.
			return nil, err
		}
	}

	oldPath := stage.NoteServicePath
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newStatut == domain.StageStatutAccepte {
			if err := s.stageRepo.UpdateStatut(ctx, tx, stageID, newStatut, &newPath); err != nil {
				return err
			}
			return s.noteRepo.SetValide(ctx, tx, stageID, true)
		}
		return s.stageRepo.UpdateStatut(ctx, tx, stageID, newStatut, nil)
	}); err != nil {
		// The stored document belongs to a commit that never happened.
		if newPath != "" {
			if cleanupErr := s.files.Delete(newPath); cleanupErr != nil {
				s.log.Warn("Orphaned upload cleanup failed", "stage_id", stageID, "error", cleanupErr)
			}
		}
		return nil, apierr.Internal(apierr.CodeStorageError, err)
	}

	// Old-file deletion stays outside the transaction: a stale file is a lesser
	// harm than an inconsistent statut, and Delete is idempotent.
	if newStatut == domain.StageStatutAccepte && oldPath != "" && oldPath != newPath {
		if err := s.files.Delete(oldPath); err != nil {
			s.log.Warn("Previous document cleanup failed", "stage_id", stageID, "error", err)
		}
	}

	s.invalidate(ctx, stageID)

	// The transition committed; a failed re-read must not turn it into a 500.
	if updated, err := s.stageRepo.GetByID(ctx, nil, stageID); err != nil {
		s.log.Warn("Post-commit stage re-read failed", "stage_id", stageID, "error", err)
		stage.Statut = newStatut
		if newStatut == domain.StageStatutAccepte {
			stage.NoteServicePath = newPath
		}
	} else {
		stage = updated
	}

	report := s.notifyOutcome(ctx, stage, newStatut, up)
	return &StatusChangeResult{Stage: stage, Notifications: report}, nil
}

// acceptDocument runs every gate of the ACCEPTE path and stores the document,
// returning its relative URL. Nothing is persisted when any gate fails.
func (s *statusService) acceptDocument(ctx context.Context, stageID uuid.UUID, up *Upload) (string, error) {
	if up == nil || len(up.Data) == 0 {
		return "", apierr.BadRequest(apierr.CodeMissingFile, fmt.Errorf("statut ACCEPTE requires a supporting document"))
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if ext != ".pdf" && ext != ".doc" && ext != ".docx" {
		return "", apierr.BadRequest(apierr.CodeBadFile, fmt.Errorf("unsupported document format %q", ext))
	}
	if up.Size > maxUploadBytes || int64(len(up.Data)) > maxUploadBytes {
		return "", apierr.BadRequest(apierr.CodeBadFile, fmt.Errorf("document exceeds the 5 MB limit"))
	}

	note, err := s.noteRepo.GetByStageID(ctx, nil, stageID)
	if err != nil {
		return "", apierr.From(err)
	}
	if note == nil || strings.TrimSpace(note.Reference) == "" {
		return "", apierr.New(404, apierr.CodeMissingReference,
			fmt.Errorf("no expected reference recorded for stage %s", stageID))
	}

	// Only PDFs carry extractable text; DOC/DOCX pass on format and size alone.
	if ext == ".pdf" {
		check := s.docref.Validate(ctx, up.Data, note.Reference)
		if !check.Valid {
			switch check.Reason {
			case RefReasonParseError:
				return "", apierr.BadRequest(apierr.CodeBadFile, fmt.Errorf("document could not be parsed"))
			case RefReasonNotFound:
				return "", apierr.BadRequest(apierr.CodeReferenceMismatch,
					fmt.Errorf("no reference found in document (expected %s)", check.Expected))
			default:
				return "", apierr.BadRequest(apierr.CodeReferenceMismatch,
					fmt.Errorf("document reference %s does not match expected %s", check.Extracted, check.Expected))
			}
		}
	}

	relURL, err := s.files.Save(up.Data, up.Filename)
	if err != nil {
		return "", apierr.Internal(apierr.CodeStorageError, err)
	}
	return relURL, nil
}

// notifyOutcome resolves every distinct person reachable from the stage's
// affectations finales and fans the outcome out, awaiting the batch so the
// response can report counts. Failures are per-recipient and never touch the
// committed statut.
func (s *statusService) notifyOutcome(ctx context.Context, stage *domain.Stage, outcome domain.StageStatut, up *Upload) DispatchReport {
	if s.dispatcher == nil {
		return DispatchReport{}
	}

	ids, err := s.resolveAssignedIDs(ctx, stage.ID)
	if err != nil {
		s.log.Warn("Recipient resolution failed", "stage_id", stage.ID, "error", err)
		return DispatchReport{}
	}
	users, err := s.utilisateurRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("Recipient lookup failed", "stage_id", stage.ID, "error", err)
		return DispatchReport{}
	}
	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		if !ValidEmail(u.Email) {
			continue
		}
		recipients = append(recipients, Recipient{ID: u.ID, Email: u.Email, Nom: u.Nom, Prenom: u.Prenom})
	}

	req := DispatchRequest{
		StageID:    stage.ID,
		Recipients: recipients,
	}
	if outcome == domain.StageStatutAccepte {
		req.Outcome = OutcomeAccepte
		req.Subject = "Votre stage a été accepté"
		req.Text = "Votre stage a été accepté. La note de service validée est jointe à ce message."
		if up != nil {
			req.Attachment = &sendgrid.Attachment{
				Filename: up.Filename,
				MIMEType: up.ContentType,
				Content:  up.Data,
			}
		}
	} else {
		req.Outcome = OutcomeRefuse
		req.Subject = "Votre stage a été refusé"
		req.Text = "Votre demande de stage a été refusée. Contactez le service de formation pour plus de détails."
	}

	return s.dispatcher.Dispatch(ctx, req)
}

// resolveAssignedIDs walks the affectation finale set: directly assigned
// stagiaires plus every member of assigned groupes, deduplicated.
func (s *statusService) resolveAssignedIDs(ctx context.Context, stageID uuid.UUID) ([]uuid.UUID, error) {
	affectations, err := s.affectationRepo.GetByStageID(ctx, nil, stageID)
	if err != nil {
		return nil, err
	}

	var groupeIDs []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, aff := range affectations {
		if aff.StagiaireID != nil {
			add(*aff.StagiaireID)
		}
		if aff.GroupeID != nil {
			groupeIDs = append(groupeIDs, *aff.GroupeID)
		}
	}

	if len(groupeIDs) > 0 {
		groupes, err := s.groupeRepo.GetByIDs(ctx, nil, groupeIDs)
		if err != nil {
			return nil, err
		}
		for _, g := range groupes {
			for _, m := range g.Membres {
				add(m.StagiaireID)
			}
		}
	}
	return ids, nil
}

func (s *statusService) invalidate(ctx context.Context, stageID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, stageID); err != nil {
		s.log.Debug("Stage cache invalidation failed", "stage_id", stageID, "error", err)
	}
}
