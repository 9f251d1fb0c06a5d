package domain

import (
	"time"

	"github.com/google/uuid"
)

// NoteService is the authoritative reference record keyed by Stage: the
// uploaded supporting document must carry Reference for the campaign to be
// accepted. Valide flips to true exactly when acceptance commits.
type NoteService struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:stage_id" json:"stage_id"`
	Reference string    `gorm:"not null;column:reference" json:"reference"`
	Valide    bool      `gorm:"not null;default:false;column:valide" json:"valide"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (NoteService) TableName() string {
	return "note_service"
}
