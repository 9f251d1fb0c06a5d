package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rotation is a time-boxed interim placement into a service under a
// superviseur. Exactly one of StagiaireID / GroupeID is set (the owner).
type Rotation struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID     uuid.UUID  `gorm:"type:uuid;not null;index;column:stage_id" json:"stage_id"`
	Service     string     `gorm:"not null;column:service" json:"service"`
	Superviseur string     `gorm:"not null;column:superviseur" json:"superviseur"`
	DateDebut   time.Time  `gorm:"not null;column:date_debut" json:"date_debut"`
	DateFin     time.Time  `gorm:"not null;column:date_fin" json:"date_fin"`
	StagiaireID *uuid.UUID `gorm:"type:uuid;column:stagiaire_id" json:"stagiaire_id,omitempty"`
	GroupeID    *uuid.UUID `gorm:"type:uuid;column:groupe_id" json:"groupe_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Rotation) TableName() string {
	return "rotation"
}

// AffectationFinale is the terminal placement: same shape and owner rule as a
// Rotation, but it is never superseded by later rotations.
type AffectationFinale struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID     uuid.UUID  `gorm:"type:uuid;not null;index;column:stage_id" json:"stage_id"`
	Service     string     `gorm:"not null;column:service" json:"service"`
	Superviseur string     `gorm:"not null;column:superviseur" json:"superviseur"`
	DateDebut   time.Time  `gorm:"not null;column:date_debut" json:"date_debut"`
	DateFin     time.Time  `gorm:"not null;column:date_fin" json:"date_fin"`
	StagiaireID *uuid.UUID `gorm:"type:uuid;column:stagiaire_id" json:"stagiaire_id,omitempty"`
	GroupeID    *uuid.UUID `gorm:"type:uuid;column:groupe_id" json:"groupe_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AffectationFinale) TableName() string {
	return "affectation_finale"
}
