package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice represents a billable document issued to a client
type Invoice struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber  string          `gorm:"uniqueIndex;not null" json:"invoice_number"`
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	SubscriptionID *uuid.UUID      `gorm:"type:uuid;index" json:"subscription_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status         string          `gorm:"default:UNPAID;not null;index" json:"status"`
	DueDate        time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Associations
	Client       Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// Invoice status constants
const (
	InvoiceStatusUnpaid  = "UNPAID"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusOverdue = "OVERDUE"
)

// IsPastDue returns true if the due date has passed
func (i *Invoice) IsPastDue(now time.Time) bool {
	return now.After(i.DueDate)
}

// EffectiveStatus derives the status as of now. A stored UNPAID invoice past
// its due date reads as OVERDUE even before the sweep persists the transition;
// a PAID invoice never reads as overdue.
func (i *Invoice) EffectiveStatus(now time.Time) string {
	if i.Status == InvoiceStatusUnpaid && i.IsPastDue(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// MayPay returns true if a payment can be recorded against the invoice
func (i *Invoice) MayPay() bool {
	return i.Status == InvoiceStatusUnpaid || i.Status == InvoiceStatusOverdue
}

// UnpaidStatus returns the status an unpaid invoice should carry as of now
func UnpaidStatus(dueDate, now time.Time) string {
	if now.After(dueDate) {
		return InvoiceStatusOverdue
	}
	return InvoiceStatusUnpaid
}

// InvoiceResponse is the JSON response format for invoices
type InvoiceResponse struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	ClientID       uuid.UUID       `json:"client_id"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	DueDate        time.Time       `json:"due_date"`
	CreatedAt      time.Time       `json:"created_at"`

	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
}

// ToResponse converts Invoice to InvoiceResponse
func (i *Invoice) ToResponse() InvoiceResponse {
	resp := InvoiceResponse{
		ID:             i.ID,
		InvoiceNumber:  i.InvoiceNumber,
		ClientID:       i.ClientID,
		SubscriptionID: i.SubscriptionID,
		TotalAmount:    i.TotalAmount,
		Status:         i.EffectiveStatus(time.Now()),
		DueDate:        i.DueDate,
		CreatedAt:      i.CreatedAt,
	}

	if i.Client.ID != uuid.Nil {
		resp.ClientName = i.Client.Name
		resp.ClientEmail = i.Client.Email
	}

	return resp
}
