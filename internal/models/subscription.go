package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription represents a recurring service a client is signed up for.
// It is passive reference data for the billing core: invoice creation uses it
// to default the invoice amount from the product price.
type Subscription struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	StartDate      time.Time  `gorm:"type:date;not null" json:"start_date"`
	ExpiryDate     time.Time  `gorm:"type:date;not null;index" json:"expiry_date"`
	Status         string     `gorm:"default:ACTIVE;not null;index" json:"status"`
	PackageDetails *string    `gorm:"type:text" json:"package_details"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Associations
	Client  Client  `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName specifies the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// Subscription status constants
const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusCancelled = "CANCELLED"
)

// IsExpired returns true if the subscription is active but past its expiry date
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && now.After(s.ExpiryDate)
}
