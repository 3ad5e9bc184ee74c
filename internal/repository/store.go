package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store is the handle the services operate the database through. It groups
// the per-table repositories and provides the single atomic-commit primitive
// the movement engine relies on.
type Store interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Clients() ClientRepository
	Products() ProductRepository
	Subscriptions() SubscriptionRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	BankAccounts() BankAccountRepository
	CashFlows() CashFlowRepository

	// Atomic runs fn inside one database transaction. The Store handed to fn
	// is bound to that transaction: row locks taken through it (the
	// FindByIDForUpdate variants) are held until fn returns, and every write
	// commits or rolls back as a unit. fn returning an error rolls back.
	Atomic(ctx context.Context, fn func(Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given gorm handle
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository                 { return NewUserRepository(s.db) }
func (s *gormStore) RefreshTokens() RefreshTokenRepository { return NewRefreshTokenRepository(s.db) }
func (s *gormStore) Clients() ClientRepository             { return NewClientRepository(s.db) }
func (s *gormStore) Products() ProductRepository           { return NewProductRepository(s.db) }
func (s *gormStore) Subscriptions() SubscriptionRepository { return NewSubscriptionRepository(s.db) }
func (s *gormStore) Invoices() InvoiceRepository           { return NewInvoiceRepository(s.db) }
func (s *gormStore) Payments() PaymentRepository           { return NewPaymentRepository(s.db) }
func (s *gormStore) BankAccounts() BankAccountRepository   { return NewBankAccountRepository(s.db) }
func (s *gormStore) CashFlows() CashFlowRepository         { return NewCashFlowRepository(s.db) }

func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
