package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ensureID assigns a fresh id when none is set
func (m *BaseModel) ensureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}
