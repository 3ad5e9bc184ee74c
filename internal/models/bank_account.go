package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankAccount represents a cash or bank account ("kas") with a stored running
// balance. Balance is derived-but-stored: it must always equal InitialBalance
// plus the sum of all currently-applied movement deltas referencing the
// account. The movement engine is the only writer of Balance outside manual
// corrections.
type BankAccount struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	BankName       string          `gorm:"not null" json:"bank_name"`
	AccountNumber  string          `gorm:"not null" json:"account_number"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"initial_balance"`
	Balance        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	IsActive       bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for BankAccount
func (BankAccount) TableName() string {
	return "bank_accounts"
}

// CanDebit returns true if subtracting amount keeps the balance non-negative
func (a *BankAccount) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.Sub(amount).GreaterThanOrEqual(decimal.Zero)
}

// BankAccountResponse is the JSON response format for bank accounts
type BankAccountResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	BankName       string          `json:"bank_name"`
	AccountNumber  string          `json:"account_number"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ToResponse converts BankAccount to BankAccountResponse
func (a *BankAccount) ToResponse() BankAccountResponse {
	return BankAccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		BankName:       a.BankName,
		AccountNumber:  a.AccountNumber,
		InitialBalance: a.InitialBalance,
		Balance:        a.Balance,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
	}
}
