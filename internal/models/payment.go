package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment represents money received against an invoice. Its side effects on
// the invoice, the bank account and the cash-flow ledger are in force only
// while Applied is true; reversal clears the flag after undoing all three.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	BankAccountID uuid.UUID       `gorm:"type:uuid;not null;index" json:"bank_account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Method        string          `gorm:"not null" json:"method"`
	PaymentDate   time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	Notes         *string         `gorm:"type:text" json:"notes"`
	Applied       bool            `gorm:"not null;default:false;index" json:"applied"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Associations
	Invoice     Invoice     `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	BankAccount BankAccount `gorm:"foreignKey:BankAccountID" json:"bank_account,omitempty"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// Payment method constants
const (
	PaymentMethodManual       = "MANUAL"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
)

// ValidPaymentMethod reports whether m is a known payment method
func ValidPaymentMethod(m string) bool {
	return m == PaymentMethodManual || m == PaymentMethodBankTransfer
}

// MayReverse returns true if the payment's effects are in force and can be undone
func (p *Payment) MayReverse() bool {
	return p.Applied
}

// PaymentResponse is the JSON response format for payments
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	BankAccountID uuid.UUID       `json:"bank_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	PaymentDate   time.Time       `json:"payment_date"`
	Notes         *string         `json:"notes,omitempty"`
	Applied       bool            `json:"applied"`
	CreatedAt     time.Time       `json:"created_at"`

	InvoiceNumber   string `json:"invoice_number,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
	BankAccountName string `json:"bank_account_name,omitempty"`
}

// ToResponse converts Payment to PaymentResponse
func (p *Payment) ToResponse() PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		BankAccountID: p.BankAccountID,
		Amount:        p.Amount,
		Method:        p.Method,
		PaymentDate:   p.PaymentDate,
		Notes:         p.Notes,
		Applied:       p.Applied,
		CreatedAt:     p.CreatedAt,
	}

	if p.Invoice.ID != uuid.Nil {
		resp.InvoiceNumber = p.Invoice.InvoiceNumber
		if p.Invoice.Client.ID != uuid.Nil {
			resp.ClientName = p.Invoice.Client.Name
		}
	}
	if p.BankAccount.ID != uuid.Nil {
		resp.BankAccountName = p.BankAccount.Name
	}

	return resp
}
