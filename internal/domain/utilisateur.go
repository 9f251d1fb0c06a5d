package domain

import (
	"time"

	"github.com/google/uuid"
)

// PersonKind discriminates the two person tracks sharing one directory table.
type PersonKind string

const (
	PersonKindStagiaire PersonKind = "STAGIAIRE"
	PersonKindChercheur PersonKind = "CHERCHEUR"
)

// Utilisateur is the directory record for anyone who can be placed. The two
// tracks (trainee, researcher) share the common columns; track-specific fields
// are nullable and only populated for the matching kind.
type Utilisateur struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Kind      PersonKind `gorm:"not null;index;column:kind" json:"kind"`
	Nom       string     `gorm:"not null;column:nom" json:"nom"`
	Prenom    string     `gorm:"not null;column:prenom" json:"prenom"`
	Email     string     `gorm:"column:email" json:"email"`
	Telephone string     `gorm:"column:telephone" json:"telephone"`

	// Stagiaire track.
	Etablissement string `gorm:"column:etablissement" json:"etablissement,omitempty"`
	Formation     string `gorm:"column:formation" json:"formation,omitempty"`

	// Chercheur track.
	Organisme      string `gorm:"column:organisme" json:"organisme,omitempty"`
	SujetRecherche string `gorm:"column:sujet_recherche" json:"sujet_recherche,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Utilisateur) TableName() string {
	return "utilisateur"
}
