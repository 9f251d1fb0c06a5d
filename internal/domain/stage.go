package domain

import (
	"time"

	"github.com/google/uuid"
)

type StageType string

const (
	StageTypeIndividuel StageType = "INDIVIDUEL"
	StageTypeGroupe     StageType = "GROUPE"
)

type StageStatut string

const (
	StageStatutEnAttente StageStatut = "EN_ATTENTE"
	StageStatutAccepte   StageStatut = "ACCEPTE"
	StageStatutRefuse    StageStatut = "REFUSE"
)

// Stage is one placement campaign. INDIVIDUEL campaigns carry exactly one
// stagiaire and no groupes; GROUPE campaigns carry at least one groupe and no
// direct stagiaire.
type Stage struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type        StageType   `gorm:"not null;column:type" json:"type"`
	StagiaireID *uuid.UUID  `gorm:"type:uuid;column:stagiaire_id" json:"stagiaire_id,omitempty"`
	Stagiaire   *Utilisateur `gorm:"foreignKey:StagiaireID" json:"stagiaire,omitempty"`
	DateDebut   time.Time   `gorm:"not null;column:date_debut" json:"date_debut"`
	DateFin     time.Time   `gorm:"not null;column:date_fin" json:"date_fin"`
	AnneeStage  string      `gorm:"not null;column:annee_stage" json:"annee_stage"`
	Statut      StageStatut `gorm:"not null;default:'EN_ATTENTE';column:statut" json:"statut"`

	// Relative URL of the accepted note de service document, when one exists.
	NoteServicePath string `gorm:"column:note_service_path" json:"note_service_path,omitempty"`

	Groupes              []Groupe            `gorm:"foreignKey:StageID" json:"groupes,omitempty"`
	Rotations            []Rotation          `gorm:"foreignKey:StageID" json:"rotations,omitempty"`
	AffectationsFinales  []AffectationFinale `gorm:"foreignKey:StageID" json:"affectations_finales,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Stage) TableName() string {
	return "stage"
}
