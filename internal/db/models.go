package db

import (
	"time"

	"gorm.io/datatypes"
)

type Session struct {
	ID           uint       `gorm:"primaryKey"`
	SessionKey   string     `gorm:"size:36;uniqueIndex;not null"`
	Code         string     `gorm:"size:12;index;not null"`
	Phase        string     `gorm:"size:32;not null"`
	LoadedAt     *time.Time `gorm:"index"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	Participants []Participant
}

type Participant struct {
	ID         uint           `gorm:"primaryKey"`
	SessionID  uint           `gorm:"index;not null;uniqueIndex:idx_participants_session_external"`
	ExternalID string         `gorm:"size:64;not null;uniqueIndex:idx_participants_session_external"`
	Name       string         `gorm:"size:32;not null"`
	Appearance datatypes.JSON `gorm:"type:jsonb;not null"`
	Position   int            `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}
