package models

import (
	"time"
)

// BaseModel provides common persistence fields for all ledger models.
// Ids are opaque strings assigned by the point-of-sale front end.
type BaseModel struct {
	ID        string    `gorm:"type:varchar(64);primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ScopedModel adds the owner and organization columns every ledger record is filtered by
type ScopedModel struct {
	BaseModel
	OwnerID        string `gorm:"type:varchar(64);not null;index"`
	OrganizationID string `gorm:"type:varchar(64);index"`
}
