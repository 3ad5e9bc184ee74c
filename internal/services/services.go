package services

import (
	"github.com/kasira/billing-api/internal/config"
	"github.com/kasira/billing-api/internal/repository"
)

// Services holds all service instances
type Services struct {
	Auth           *AuthService
	User           *UserService
	Client         *ClientService
	Product        *ProductService
	Subscription   *SubscriptionService
	Invoice        *InvoiceService
	Movement       *MovementService
	BankAccount    *BankAccountService
	CashFlow       *CashFlowService
	Report         *ReportService
	Export         *ExportService
	Reconciliation *ReconciliationService
}

// NewServices creates all service instances
func NewServices(store repository.Store, cfg *config.Config) *Services {
	movementSvc := NewMovementService(store)
	cashFlowSvc := NewCashFlowService(store)
	reportSvc := NewReportService(store)

	return &Services{
		Auth:           NewAuthService(store, cfg),
		User:           NewUserService(store),
		Client:         NewClientService(store),
		Product:        NewProductService(store),
		Subscription:   NewSubscriptionService(store),
		Invoice:        NewInvoiceService(store),
		Movement:       movementSvc,
		BankAccount:    NewBankAccountService(store),
		CashFlow:       cashFlowSvc,
		Report:         reportSvc,
		Export:         NewExportService(store, reportSvc),
		Reconciliation: NewReconciliationService(store, cashFlowSvc),
	}
}
