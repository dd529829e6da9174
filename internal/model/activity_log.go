package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is the audit trail written asynchronously from domain events.
type ActivityLog struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	UserID      *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action      string            `gorm:"type:varchar(20);not null" json:"action"`
	Entity      string            `gorm:"type:varchar(40);not null;index" json:"entity"`
	EntityID    string            `gorm:"type:varchar(64)" json:"entity_id,omitempty"`
	Description string            `gorm:"type:varchar(255);not null" json:"description"`
	Changes     datatypes.JSONMap `gorm:"type:jsonb" json:"changes,omitempty"`
	IPAddress   string            `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent   string            `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
