package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashFlowEntry represents one line of the append-style cash-flow ledger.
// Entries with a non-nil PaymentID were produced by the movement engine and
// may only be removed through payment reversal; entries without one are
// manual and are edited via reverse-then-reapply, never field overwrite.
type CashFlowEntry struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Type            string          `gorm:"not null;index" json:"type"`
	Category        string          `gorm:"not null" json:"category"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Description     string          `gorm:"type:text" json:"description"`
	EntryDate       time.Time       `gorm:"type:date;not null;index" json:"entry_date"`
	BankAccountID   *uuid.UUID      `gorm:"type:uuid;index" json:"bank_account_id"`
	PaymentID       *uuid.UUID      `gorm:"type:uuid;index" json:"payment_id"`
	CreatedByUserID *uint           `json:"created_by_user_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Associations
	BankAccount *BankAccount `gorm:"foreignKey:BankAccountID" json:"bank_account,omitempty"`
	Payment     *Payment     `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// TableName specifies the table name for CashFlowEntry
func (CashFlowEntry) TableName() string {
	return "cash_flow_entries"
}

// Cash flow type constants
const (
	CashFlowTypeIncome  = "INCOME"
	CashFlowTypeExpense = "EXPENSE"
)

// Category written by the movement engine for payment-linked entries
const CategoryPaymentReceived = "Payment Received"

// Category written by bank-account manual corrections
const CategoryBalanceAdjustment = "Balance Adjustment"

// ValidCashFlowType reports whether t is a known entry type
func ValidCashFlowType(t string) bool {
	return t == CashFlowTypeIncome || t == CashFlowTypeExpense
}

// IsSystemLinked returns true if the entry was generated by a payment
func (e *CashFlowEntry) IsSystemLinked() bool {
	return e.PaymentID != nil
}

// SignedAmount returns the balance delta the entry applies to its account:
// positive for INCOME, negative for EXPENSE.
func (e *CashFlowEntry) SignedAmount() decimal.Decimal {
	if e.Type == CashFlowTypeExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// CashFlowEntryResponse is the JSON response format for ledger entries
type CashFlowEntryResponse struct {
	ID            uint            `json:"id"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	EntryDate     time.Time       `json:"entry_date"`
	BankAccountID *uuid.UUID      `json:"bank_account_id,omitempty"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	SystemLinked  bool            `json:"system_linked"`
	CreatedAt     time.Time       `json:"created_at"`

	BankAccountName string `json:"bank_account_name,omitempty"`
}

// ToResponse converts CashFlowEntry to CashFlowEntryResponse
func (e *CashFlowEntry) ToResponse() CashFlowEntryResponse {
	resp := CashFlowEntryResponse{
		ID:            e.ID,
		Type:          e.Type,
		Category:      e.Category,
		Amount:        e.Amount,
		Description:   e.Description,
		EntryDate:     e.EntryDate,
		BankAccountID: e.BankAccountID,
		PaymentID:     e.PaymentID,
		SystemLinked:  e.IsSystemLinked(),
		CreatedAt:     e.CreatedAt,
	}

	if e.BankAccount != nil {
		resp.BankAccountName = e.BankAccount.Name
	}

	return resp
}
