package domain

import (
	"time"

	"github.com/google/uuid"
)

// Groupe is a cohort inside one Stage. Numero is campaign-local: request
// payloads reference groups by it, and it is only unique within its Stage.
type Groupe struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID uuid.UUID `gorm:"type:uuid;not null;index;column:stage_id" json:"stage_id"`
	Numero  int       `gorm:"not null;column:numero" json:"numero"`

	Membres []GroupeStagiaire `gorm:"foreignKey:GroupeID" json:"membres,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Groupe) TableName() string {
	return "groupe"
}

// GroupeStagiaire is one membership row. A stagiaire appears in at most one
// groupe of a given Stage; the aggregate validation enforces it per request and
// the scoped replace keeps it true across updates.
type GroupeStagiaire struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GroupeID    uuid.UUID    `gorm:"type:uuid;not null;index;column:groupe_id" json:"groupe_id"`
	StagiaireID uuid.UUID    `gorm:"type:uuid;not null;index;column:stagiaire_id" json:"stagiaire_id"`
	Stagiaire   *Utilisateur `gorm:"foreignKey:StagiaireID" json:"stagiaire,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (GroupeStagiaire) TableName() string {
	return "groupe_stagiaire"
}
