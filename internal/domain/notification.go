package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationLog records one post-commit dispatch batch: how many recipients
// were resolved, how many sends succeeded, and per-failure detail as JSON.
type NotificationLog struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageID uuid.UUID `gorm:"type:uuid;not null;index;column:stage_id" json:"stage_id"`
	Outcome string    `gorm:"not null;column:outcome" json:"outcome"`
	Total   int       `gorm:"not null;column:total" json:"total"`
	Sent    int       `gorm:"not null;column:sent" json:"sent"`

	Details datatypes.JSON `gorm:"column:details" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (NotificationLog) TableName() string {
	return "notification_log"
}
