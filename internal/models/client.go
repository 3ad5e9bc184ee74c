package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a billed customer
type Client struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"not null;index" json:"name"`
	Email      string    `gorm:"not null" json:"email"`
	PhoneWA    *string   `json:"phone_wa"`
	Address    *string   `gorm:"type:text" json:"address"`
	IdentityNo *string   `json:"identity_no"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}
