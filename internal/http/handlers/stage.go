package handlers

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/http/response"
	"github.com/stagium/backend/internal/platform/apierr"
	"github.com/stagium/backend/internal/platform/logger"
	"github.com/stagium/backend/internal/services"
)

type StageHandler struct {
	log       *logger.Logger
	placement services.PlacementService
	status    services.StatusService
}

func NewStageHandler(log *logger.Logger, placement services.PlacementService, status services.StatusService) *StageHandler {
	return &StageHandler{
		log:       log.With("handler", "StageHandler"),
		placement: placement,
		status:    status,
	}
}

// ---------- payloads ----------

type groupePayload struct {
	Numero     int      `json:"numero"`
	Stagiaires []string `json:"stagiaires"`
}

type itemPayload struct {
	Service     string  `json:"service"`
	Superviseur string  `json:"superviseur"`
	DateDebut   string  `json:"date_debut"`
	DateFin     string  `json:"date_fin"`
	Stagiaire   *string `json:"stagiaire"`
	Groupe      *int    `json:"groupe"`
}

type stagePayload struct {
	Type                string          `json:"type"`
	Stagiaire           *string         `json:"stagiaire"`
	DateDebut           string          `json:"date_debut"`
	DateFin             string          `json:"date_fin"`
	AnneeStage          string          `json:"annee_stage"`
	Groupes             []groupePayload `json:"groupes"`
	Rotations           []itemPayload   `json:"rotations"`
	AffectationsFinales []itemPayload   `json:"affectations_finales"`
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func parseOptionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (p *stagePayload) toInput() (*services.AggregateInput, error) {
	stagiaireID, err := parseOptionalUUID(p.Stagiaire)
	if err != nil {
		return nil, apierr.BadRequest(apierr.CodeInvalidPayload, fmt.Errorf("invalid stagiaire id: %w", err))
	}
	dateDebut, err := parseDate(p.DateDebut)
	if err != nil {
		return nil, apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("invalid date_debut: %w", err))
	}
	dateFin, err := parseDate(p.DateFin)
	if err != nil {
		return nil, apierr.BadRequest(apierr.CodeInvalidDateRange, fmt.Errorf("invalid date_fin: %w", err))
	}

	in := &services.AggregateInput{
		Type:        domain.StageType(p.Type),
		StagiaireID: stagiaireID,
		DateDebut:   dateDebut,
		DateFin:     dateFin,
		AnneeStage:  p.AnneeStage,
	}

	for _, g := range p.Groupes {
		gi := services.GroupeInput{Numero: g.Numero}
		for _, raw := range g.Stagiaires {
			sid, err := uuid.Parse(raw)
			if err != nil {
				return nil, apierr.BadRequest(apierr.CodeInvalidPayload,
					fmt.Errorf("groupe %d: invalid stagiaire id %q", g.Numero, raw))
			}
			gi.Stagiaires = append(gi.Stagiaires, sid)
		}
		in.Groupes = append(in.Groupes, gi)
	}

	if in.Rotations, err = toItems(p.Rotations, "rotation"); err != nil {
		return nil, err
	}
	if in.AffectationsFinales, err = toItems(p.AffectationsFinales, "affectation finale"); err != nil {
		return nil, err
	}
	return in, nil
}

func toItems(payloads []itemPayload, kind string) ([]services.PlacementItemInput, error) {
	var out []services.PlacementItemInput
	for i, p := range payloads {
		stagiaireID, err := parseOptionalUUID(p.Stagiaire)
		if err != nil {
			return nil, apierr.BadRequest(apierr.CodeInvalidPayload,
				fmt.Errorf("%s %d: invalid stagiaire id: %w", kind, i, err))
		}
		dateDebut, err := parseDate(p.DateDebut)
		if err != nil {
			return nil, apierr.BadRequest(apierr.CodeInvalidDateRange,
				fmt.Errorf("%s %d: invalid date_debut: %w", kind, i, err))
		}
		dateFin, err := parseDate(p.DateFin)
		if err != nil {
			return nil, apierr.BadRequest(apierr.CodeInvalidDateRange,
				fmt.Errorf("%s %d: invalid date_fin: %w", kind, i, err))
		}
		out = append(out, services.PlacementItemInput{
			Service:      p.Service,
			Superviseur:  p.Superviseur,
			DateDebut:    dateDebut,
			DateFin:      dateFin,
			StagiaireID:  stagiaireID,
			GroupeNumero: p.Groupe,
		})
	}
	return out, nil
}

// ---------- routes ----------

// POST /api/stages
func (h *StageHandler) CreateStage(c *gin.Context) {
	var payload stagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "malformed request body", err)
		return
	}
	in, err := payload.toInput()
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	stage, err := h.placement.CreateAggregate(c.Request.Context(), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, stage)
}

// PUT /api/stages/:stageId
func (h *StageHandler) ReplaceStage(c *gin.Context) {
	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "invalid stage id", err)
		return
	}
	var payload stagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "malformed request body", err)
		return
	}
	in, err := payload.toInput()
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	stage, err := h.placement.ReplaceAggregate(c.Request.Context(), stageID, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, stage)
}

// GET /api/stages/:stageId/:type
func (h *StageHandler) GetStage(c *gin.Context) {
	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "invalid stage id", err)
		return
	}
	stage, err := h.placement.GetStage(c.Request.Context(), stageID, domain.StageType(c.Param("type")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, stage)
}

// DELETE /api/stages/:stageId
func (h *StageHandler) DeleteStage(c *gin.Context) {
	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "invalid stage id", err)
		return
	}
	if err := h.placement.DeleteStage(c.Request.Context(), stageID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": stageID})
}

// PUT /api/stages/:stageId/changer-statut
// Multipart form: field "statut", optional file field "document".
func (h *StageHandler) ChangeStatus(c *gin.Context) {
	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		response.RespondError(c, 400, apierr.CodeInvalidPayload, "invalid stage id", err)
		return
	}
	statut := domain.StageStatut(c.PostForm("statut"))

	var upload *services.Upload
	if fh, err := c.FormFile("document"); err == nil && fh != nil {
		f, err := fh.Open()
		if err != nil {
			response.RespondError(c, 400, apierr.CodeBadFile, "unreadable document", err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			response.RespondError(c, 400, apierr.CodeBadFile, "unreadable document", err)
			return
		}
		upload = &services.Upload{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	result, err := h.status.ChangeStatus(c.Request.Context(), stageID, statut, upload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}
