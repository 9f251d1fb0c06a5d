package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/clients/redis"
	"github.com/stagium/backend/internal/data/repos"
	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/apierr"
	"github.com/stagium/backend/internal/platform/filestore"
	"github.com/stagium/backend/internal/platform/logger"
)

// GroupeInput is one cohort of a GROUPE campaign, identified by its
// campaign-local numero.
type GroupeInput struct {
	Numero     int
	Stagiaires []uuid.UUID
}

// PlacementItemInput is one rotation or affectation finale of the request.
// Exactly one of StagiaireID / GroupeNumero must be set; GroupeNumero refers to
// a groupe of the same request, not a persisted id.
type PlacementItemInput struct {
	Service      string
	Superviseur  string
	DateDebut    time.Time
	DateFin      time.Time
	StagiaireID  *uuid.UUID
	GroupeNumero *int
}

type AggregateInput struct {
	Type                domain.StageType
	StagiaireID         *uuid.UUID
	DateDebut           time.Time
	DateFin             time.Time
	AnneeStage          string
	Groupes             []GroupeInput
	Rotations           []PlacementItemInput
	AffectationsFinales []PlacementItemInput
}

// PlacementService orchestrates the four-entity aggregate. All business rules
// are checked before the transaction opens; the transaction is the only unit of
// atomicity (no partial writes survive a failure at any step).
type PlacementService interface {
	CreateAggregate(ctx context.Context, in *AggregateInput) (*domain.Stage, error)
	ReplaceAggregate(ctx context.Context, stageID uuid.UUID, in *AggregateInput) (*domain.Stage, error)
	GetStage(ctx context.Context, stageID uuid.UUID, stageType domain.StageType) (*domain.Stage, error)
	DeleteStage(ctx context.Context, stageID uuid.UUID) error
}

type placementService struct {
	db              *gorm.DB
	log             *logger.Logger
	stageRepo       repos.StageRepo
	groupeRepo      repos.GroupeRepo
	rotationRepo    repos.RotationRepo
	affectationRepo repos.AffectationFinaleRepo
	utilisateurRepo repos.UtilisateurRepo
	files           filestore.Store
	dispatcher      Dispatcher
	cache           redis.StageCache
}

func NewPlacementService(
	db *gorm.DB,
	log *logger.Logger,
	stageRepo repos.StageRepo,
	groupeRepo repos.GroupeRepo,
	rotationRepo repos.RotationRepo,
	affectationRepo repos.AffectationFinaleRepo,
	utilisateurRepo repos.UtilisateurRepo,
	files filestore.Store,
	dispatcher Dispatcher,
	cache redis.StageCache,
) PlacementService {
	return &placementService{
		db:              db,
		log:             log.With("service", "PlacementService"),
		stageRepo:       stageRepo,
		groupeRepo:      groupeRepo,
		rotationRepo:    rotationRepo,
		affectationRepo: affectationRepo,
		utilisateurRepo: utilisateurRepo,
		files:           files,
		dispatcher:      dispatcher,
		cache:           cache,
	}
}

// ---------- validation ----------

// ValidateAggregate runs every business check of the create/replace path. It
// is exported for direct testing; nothing is written before it passes.
func ValidateAggregate(in *AggregateInput) error {
	if in == nil {
		return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("empty payload"))
	}
	if in.DateDebut.IsZero() || in.DateFin.IsZero() {
		return apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("stage date range required"))
	}
	if in.DateDebut.After(in.DateFin) {
		return apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("stage date_debut after date_fin"))
	}

	switch in.Type {
	case domain.StageTypeIndividuel:
		if in.StagiaireID == nil || *in.StagiaireID == uuid.Nil {
			return apierr.BadRequest(apierr.CodeTypeRule, fmt.Errorf("stage INDIVIDUEL requires a stagiaire"))
		}
		if len(in.Groupes) > 0 {
			return apierr.BadRequest(apierr.CodeTypeRule, fmt.Errorf("stage INDIVIDUEL cannot carry groupes"))
		}
	case domain.StageTypeGroupe:
		if len(in.Groupes) == 0 {
			return apierr.BadRequest(apierr.CodeTypeRule, fmt.Errorf("stage GROUPE requires at least one groupe"))
		}
		if in.StagiaireID != nil {
			return apierr.BadRequest(apierr.CodeTypeRule, fmt.Errorf("stage GROUPE cannot carry a direct stagiaire"))
		}
	default:
		return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("unknown stage type %q", in.Type))
	}

	numeros := make(map[int]struct{}, len(in.Groupes))
	seenMembers := make(map[uuid.UUID]int)
	for _, g := range in.Groupes {
		if g.Numero <= 0 {
			return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("groupe numero must be positive"))
		}
		if _, dup := numeros[g.Numero]; dup {
			return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("duplicate groupe numero %d", g.Numero))
		}
		numeros[g.Numero] = struct{}{}
		if len(g.Stagiaires) == 0 {
			return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("groupe %d has no stagiaires", g.Numero))
		}
		for _, sid := range g.Stagiaires {
			if sid == uuid.Nil {
				return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("groupe %d carries an empty stagiaire id", g.Numero))
			}
			if other, dup := seenMembers[sid]; dup {
				return apierr.BadRequest(apierr.CodeDuplicateMembership,
					fmt.Errorf("stagiaire %s appears in groupe %d and groupe %d", sid, other, g.Numero))
			}
			seenMembers[sid] = g.Numero
		}
	}

	if err := validateItems("rotation", in.Rotations, numeros); err != nil {
		return err
	}
	return validateItems("affectation finale", in.AffectationsFinales, numeros)
}

func validateItems(kind string, items []PlacementItemInput, numeros map[int]struct{}) error {
	for i, item := range items {
		if item.Service == "" {
			return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("%s %d missing service", kind, i))
		}
		if item.Superviseur == "" {
			return apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("%s %d missing superviseur", kind, i))
		}
		if item.DateDebut.IsZero() || item.DateFin.IsZero() {
			return apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("%s %d missing date range", kind, i))
		}
		if item.DateDebut.After(item.DateFin) {
			return apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("%s %d has date_debut after date_fin", kind, i))
		}

		hasStagiaire := item.StagiaireID != nil && *item.StagiaireID != uuid.Nil
		hasGroupe := item.GroupeNumero != nil
		if hasStagiaire == hasGroupe {
			return apierr.BadRequest(apierr.CodeInvalidPayload,
				fmt.Errorf("%s %d must reference exactly one of stagiaire or groupe", kind, i))
		}
		if hasGroupe {
			if _, ok := numeros[*item.GroupeNumero]; !ok {
				return apierr.New(404, apierr.CodeUnknownGroupeNumero,
					fmt.Errorf("%s %d references unknown groupe numero %d", kind, i, *item.GroupeNumero))
			}
		}
	}

	if conflicts := FindConflicts(stagiaireRanges(items)); len(conflicts) > 0 {
		c := conflicts[0]
		return apierr.BadRequest(apierr.CodeConflictStagiaire,
			fmt.Errorf("%ss %d and %d overlap for the same stagiaire", kind, c.A.Index, c.B.Index))
	}
	if conflicts := FindConflicts(groupeRanges(items)); len(conflicts) > 0 {
		c := conflicts[0]
		return apierr.BadRequest(apierr.CodeConflictGroupe,
			fmt.Errorf("%ss %d and %d overlap for the same groupe", kind, c.A.Index, c.B.Index))
	}
	return nil
}

func stagiaireRanges(items []PlacementItemInput) []OwnedRange {
	out := make([]OwnedRange, 0, len(items))
	for i, item := range items {
		key := ""
		if item.StagiaireID != nil && *item.StagiaireID != uuid.Nil {
			key = item.StagiaireID.String()
		}
		out = append(out, OwnedRange{OwnerKey: key, Start: item.DateDebut, End: item.DateFin, Index: i})
	}
	return out
}

func groupeRanges(items []PlacementItemInput) []OwnedRange {
	out := make([]OwnedRange, 0, len(items))
	for i, item := range items {
		key := ""
		if item.GroupeNumero != nil {
			key = strconv.Itoa(*item.GroupeNumero)
		}
		out = append(out, OwnedRange{OwnerKey: key, Start: item.DateDebut, End: item.DateFin, Index: i})
	}
	return out
}

// ---------- aggregate writes ----------

func (s *placementService) CreateAggregate(ctx context.Context, in *AggregateInput) (*domain.Stage, error) {
	if err := ValidateAggregate(in); err != nil {
		return nil, err
	}

	stage := stageFromInput(uuid.New(), in)
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.persistAggregate(ctx, tx, stage, in)
	}); err != nil {
		return nil, apierr.From(err)
	}

	s.invalidate(ctx, stage.ID)
	go s.notifyRegistered(stage, in)

	return s.stageRepo.GetDetail(ctx, nil, stage.ID)
}

func (s *placementService) ReplaceAggregate(ctx context.Context, stageID uuid.UUID, in *AggregateInput) (*domain.Stage, error) {
	if err := ValidateAggregate(in); err != nil {
		return nil, err
	}

	existing, err := s.stageRepo.GetByID(ctx, nil, stageID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if existing == nil {
		return nil, apierr.NotFound(fmt.Errorf("stage %s not found", stageID))
	}

	stage := stageFromInput(stageID, in)
	stage.Statut = existing.Statut
	stage.NoteServicePath = existing.NoteServicePath

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Full replace: the previous dependent set goes away entirely, then the
		// request is persisted as a fresh create against the same Stage id.
		if err := s.affectationRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.rotationRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.groupeRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"type":         stage.Type,
			"stagiaire_id": stage.StagiaireID,
			"date_debut":   stage.DateDebut,
			"date_fin":     stage.DateFin,
			"annee_stage":  stage.AnneeStage,
		}
		if err := tx.WithContext(ctx).Model(&domain.Stage{}).Where("id = ?", stageID).Updates(updates).Error; err != nil {
			return err
		}
		return s.persistDependents(ctx, tx, stage, in)
	}); err != nil {
		return nil, apierr.From(err)
	}

	s.invalidate(ctx, stageID)
	go s.notifyRegistered(stage, in)

	return s.stageRepo.GetDetail(ctx, nil, stageID)
}

// persistAggregate inserts the Stage row then its dependents, all on one tx.
func (s *placementService) persistAggregate(ctx context.Context, tx *gorm.DB, stage *domain.Stage, in *AggregateInput) error {
	if _, err := s.stageRepo.Create(ctx, tx, stage); err != nil {
		return err
	}
	return s.persistDependents(ctx, tx, stage, in)
}

func (s *placementService) persistDependents(ctx context.Context, tx *gorm.DB, stage *domain.Stage, in *AggregateInput) error {
	numeroToID := make(map[int]uuid.UUID, len(in.Groupes))
	if len(in.Groupes) > 0 {
		groupes := make([]*domain.Groupe, 0, len(in.Groupes))
		for _, g := range in.Groupes {
			groupe := &domain.Groupe{
				ID:      uuid.New(),
				StageID: stage.ID,
				Numero:  g.Numero,
			}
			for _, sid := range g.Stagiaires {
				groupe.Membres = append(groupe.Membres, domain.GroupeStagiaire{
					GroupeID:    groupe.ID,
					StagiaireID: sid,
				})
			}
			groupes = append(groupes, groupe)
		}
		if _, err := s.groupeRepo.Create(ctx, tx, groupes); err != nil {
			return err
		}
		for _, g := range groupes {
			numeroToID[g.Numero] = g.ID
		}
	}

	rotations, err := buildItems(stage.ID, in.Rotations, numeroToID, func(stageID uuid.UUID, item PlacementItemInput, owner ownerRef) *domain.Rotation {
		return &domain.Rotation{
			StageID:     stageID,
			Service:     item.Service,
			Superviseur: item.Superviseur,
			DateDebut:   item.DateDebut,
			DateFin:     item.DateFin,
			StagiaireID: owner.stagiaireID,
			GroupeID:    owner.groupeID,
		}
	})
	if err != nil {
		return err
	}
	if _, err := s.rotationRepo.Create(ctx, tx, rotations); err != nil {
		return err
	}

	affectations, err := buildItems(stage.ID, in.AffectationsFinales, numeroToID, func(stageID uuid.UUID, item PlacementItemInput, owner ownerRef) *domain.AffectationFinale {
		return &domain.AffectationFinale{
			StageID:     stageID,
			Service:     item.Service,
			Superviseur: item.Superviseur,
			DateDebut:   item.DateDebut,
			DateFin:     item.DateFin,
			StagiaireID: owner.stagiaireID,
			GroupeID:    owner.groupeID,
		}
	})
	if err != nil {
		return err
	}
	if _, err := s.affectationRepo.Create(ctx, tx, affectations); err != nil {
		return err
	}
	return nil
}

type ownerRef struct {
	stagiaireID *uuid.UUID
	groupeID    *uuid.UUID
}

// buildItems resolves each item's owner, mapping campaign-local groupe numeros
// through the ids generated in this transaction. An unresolved numero aborts
// the whole aggregate; it is never silently dropped.
func buildItems[T any](stageID uuid.UUID, items []PlacementItemInput, numeroToID map[int]uuid.UUID, build func(uuid.UUID, PlacementItemInput, ownerRef) *T) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for i, item := range items {
		var owner ownerRef
		switch {
		case item.StagiaireID != nil && *item.StagiaireID != uuid.Nil:
			sid := *item.StagiaireID
			owner.stagiaireID = &sid
		case item.GroupeNumero != nil:
			gid, ok := numeroToID[*item.GroupeNumero]
			if !ok {
				return nil, apierr.New(404, apierr.CodeUnknownGroupeNumero,
					fmt.Errorf("item %d references unresolved groupe numero %d", i, *item.GroupeNumero))
			}
			owner.groupeID = &gid
		default:
			return nil, apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("item %d has no owner", i))
		}
		out = append(out, build(stageID, item, owner))
	}
	return out, nil
}

func stageFromInput(id uuid.UUID, in *AggregateInput) *domain.Stage {
	stage := &domain.Stage{
		ID:         id,
		Type:       in.Type,
		DateDebut:  in.DateDebut,
		DateFin:    in.DateFin,
		AnneeStage: in.AnneeStage,
		Statut:     domain.StageStatutEnAttente,
	}
	if in.Type == domain.StageTypeIndividuel && in.StagiaireID != nil {
		sid := *in.StagiaireID
		stage.StagiaireID = &sid
	}
	return stage
}

// ---------- reads / delete ----------

func (s *placementService) GetStage(ctx context.Context, stageID uuid.UUID, stageType domain.StageType) (*domain.Stage, error) {
	if stageType != domain.StageTypeIndividuel && stageType != domain.StageTypeGroupe {
		return nil, apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("unknown stage type %q", stageType))
	}

	if cached := s.cacheGet(ctx, stageID); cached != nil && cached.Type == stageType {
		return cached, nil
	}

	stage, err := s.stageRepo.GetDetail(ctx, nil, stageID)
	if err != nil {
		return nil, apierr.From(err)
	}
	// A type mismatch means the stage is not in the requested collection.
	if stage == nil || stage.Type != stageType {
		return nil, apierr.NotFound(fmt.Errorf("stage %s not found", stageID))
	}

	s.cacheSet(ctx, stage)
	return stage, nil
}

func (s *placementService) DeleteStage(ctx context.Context, stageID uuid.UUID) error {
	existing, err := s.stageRepo.GetByID(ctx, nil, stageID)
	if err != nil {
		return apierr.From(err)
	}
	if existing == nil {
		return apierr.NotFound(fmt.Errorf("stage %s not found", stageID))
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.affectationRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.rotationRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		if err := s.groupeRepo.DeleteByStageID(ctx, tx, stageID); err != nil {
			return err
		}
		return s.stageRepo.DeleteByID(ctx, tx, stageID)
	}); err != nil {
		return apierr.From(err)
	}

	// The stored note de service has no owner left; cleanup is best-effort and
	// stays outside the transaction like every other file mutation.
	if existing.NoteServicePath != "" && s.files != nil {
		if err := s.files.Delete(existing.NoteServicePath); err != nil {
			s.log.Warn("Stored document cleanup failed", "stage_id", stageID, "error", err)
		}
	}

	s.invalidate(ctx, stageID)
	return nil
}

// ---------- post-commit side effects ----------

// notifyRegistered is fire-and-forget relative to the HTTP response: a failed
// send is logged and never reflected in the committed aggregate.
func (s *placementService) notifyRegistered(stage *domain.Stage, in *AggregateInput) {
	if s.dispatcher == nil {
		return
	}
	ctx := context.Background()

	var ids []uuid.UUID
	if stage.Type == domain.StageTypeIndividuel && stage.StagiaireID != nil {
		ids = append(ids, *stage.StagiaireID)
	} else {
		seen := make(map[uuid.UUID]struct{})
		for _, g := range in.Groupes {
			for _, sid := range g.Stagiaires {
				if _, dup := seen[sid]; !dup {
					seen[sid] = struct{}{}
					ids = append(ids, sid)
				}
			}
		}
	}

	recipients, err := s.resolveRecipients(ctx, ids)
	if err != nil {
		s.log.Warn("Recipient resolution failed", "stage_id", stage.ID, "error", err)
		return
	}

	s.dispatcher.Dispatch(ctx, DispatchRequest{
		StageID:    stage.ID,
		Outcome:    OutcomeEnregistre,
		Recipients: recipients,
		Subject:    "Votre stage a été enregistré",
		Text: fmt.Sprintf("Votre stage du %s au %s a été enregistré et est en attente de validation.",
			stage.DateDebut.Format("2006-01-02"), stage.DateFin.Format("2006-01-02")),
	})
}

func (s *placementService) resolveRecipients(ctx context.Context, ids []uuid.UUID) ([]Recipient, error) {
	users, err := s.utilisateurRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	recipients := make([]Recipient, 0, len(users))
	for _, u := range users {
		if !ValidEmail(u.Email) {
			s.log.Debug("Skipping recipient without valid email", "user_id", u.ID)
			continue
		}
		recipients = append(recipients, Recipient{ID: u.ID, Email: u.Email, Nom: u.Nom, Prenom: u.Prenom})
	}
	return recipients, nil
}

// ---------- cache ----------

func (s *placementService) cacheGet(ctx context.Context, stageID uuid.UUID) *domain.Stage {
	if s.cache == nil {
		return nil
	}
	stage, err := s.cache.Get(ctx, stageID)
	if err != nil {
		s.log.Debug("Stage cache read failed", "stage_id", stageID, "error", err)
		return nil
	}
	return stage
}

func (s *placementService) cacheSet(ctx context.Context, stage *domain.Stage) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, stage); err != nil {
		s.log.Debug("Stage cache write failed", "stage_id", stage.ID, "error", err)
	}
}

func (s *placementService) invalidate(ctx context.Context, stageID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, stageID); err != nil {
		s.log.Debug("Stage cache invalidation failed", "stage_id", stageID, "error", err)
	}
}
