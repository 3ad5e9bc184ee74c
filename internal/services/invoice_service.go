package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// InvoiceService handles invoice lifecycle outside of payment application.
// Status transitions driven by money movement belong to MovementService;
// this service only creates, edits and expires invoices.
type InvoiceService struct {
	store repository.Store
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(store repository.Store) *InvoiceService {
	return &InvoiceService{store: store}
}

// CreateInvoiceInput carries the arguments for CreateInvoice
type CreateInvoiceInput struct {
	ClientID       uuid.UUID
	SubscriptionID *uuid.UUID
	TotalAmount    decimal.Decimal
	DueDate        time.Time
}

// UpdateInvoiceInput carries the editable invoice fields
type UpdateInvoiceInput struct {
	TotalAmount *decimal.Decimal
	DueDate     *time.Time
}

// CreateInvoice issues a new invoice. When a subscription is given and no
// amount, the amount defaults to the subscription's product price. The
// invoice number is allocated inside the same atomic unit as the insert so
// concurrent creations in one month cannot collide.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrValidation)
	}

	var invoice *models.Invoice
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		if _, err := st.Clients().FindByID(ctx, in.ClientID); err != nil {
			return wrapLookup(err, "client")
		}

		amount := in.TotalAmount
		if in.SubscriptionID != nil {
			sub, err := st.Subscriptions().FindByIDWithProduct(ctx, *in.SubscriptionID)
			if err != nil {
				return wrapLookup(err, "subscription")
			}
			if sub.ClientID != in.ClientID {
				return fmt.Errorf("%w: subscription belongs to a different client", ErrValidation)
			}
			if amount.IsZero() {
				amount = sub.Product.Price
			}
		}
		if !amount.IsPositive() {
			return fmt.Errorf("%w: total amount must be positive", ErrValidation)
		}

		now := time.Now()
		number, err := st.Invoices().NextInvoiceNumber(ctx, now)
		if err != nil {
			return fmt.Errorf("%w: allocate invoice number: %v", ErrStoreFailure, err)
		}

		invoice = &models.Invoice{
			ID:             uuid.New(),
			InvoiceNumber:  number,
			ClientID:       in.ClientID,
			SubscriptionID: in.SubscriptionID,
			TotalAmount:    amount,
			Status:         models.UnpaidStatus(in.DueDate, now),
			DueDate:        in.DueDate,
		}
		if err := st.Invoices().Create(ctx, invoice); err != nil {
			return fmt.Errorf("%w: insert invoice: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxErr(err)
	}

	logger.Info("invoice created", "invoice_number", invoice.InvoiceNumber, "client_id", in.ClientID)
	return invoice, nil
}

// GetInvoice returns one invoice by id
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.store.Invoices().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "invoice")
	}
	return invoice, nil
}

// ListInvoices returns a page of invoices
func (s *InvoiceService) ListInvoices(ctx context.Context, query *repository.ListQuery) ([]models.Invoice, int64, error) {
	invoices, total, err := s.store.Invoices().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list invoices: %v", ErrStoreFailure, err)
	}
	return invoices, total, nil
}

// UpdateInvoice edits amount or due date. A paid invoice's amount is frozen:
// the recorded payment already moved that money, so changing the figure would
// break the ledger tie-out.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		var err error
		invoice, err = st.Invoices().FindByIDForUpdate(ctx, id)
		if err != nil {
			return wrapLookup(err, "invoice")
		}

		if in.TotalAmount != nil {
			if invoice.Status == models.InvoiceStatusPaid {
				return fmt.Errorf("%w: cannot change amount of a paid invoice", ErrValidation)
			}
			if !in.TotalAmount.IsPositive() {
				return fmt.Errorf("%w: total amount must be positive", ErrValidation)
			}
			invoice.TotalAmount = *in.TotalAmount
		}
		if in.DueDate != nil {
			invoice.DueDate = *in.DueDate
			if invoice.Status != models.InvoiceStatusPaid {
				invoice.Status = models.UnpaidStatus(invoice.DueDate, time.Now())
			}
		}

		if err := st.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("%w: update invoice: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxErr(err)
	}
	return invoice, nil
}

// DeleteInvoice removes an invoice that has no payments recorded against it.
// Invoices with payment history, applied or reversed, stay: delete the
// payments first through the movement engine.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		invoice, err := st.Invoices().FindByIDForUpdate(ctx, id)
		if err != nil {
			return wrapLookup(err, "invoice")
		}

		payments, err := st.Payments().FindByInvoice(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("%w: list payments: %v", ErrStoreFailure, err)
		}
		if len(payments) > 0 {
			return fmt.Errorf("%w: invoice %s has payment history", ErrValidation, invoice.InvoiceNumber)
		}

		if err := st.Invoices().Delete(ctx, invoice.ID); err != nil {
			return fmt.Errorf("%w: delete invoice: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return translateTxErr(err)
	}

	logger.Info("invoice deleted", "invoice_id", id)
	return nil
}

// MarkOverdueInvoices persists the UNPAID to OVERDUE transition for every
// invoice past its due date. Reads already derive OVERDUE lazily, so the
// sweep only reconciles stored state; it returns how many rows it flipped.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context, now time.Time) (int, error) {
	invoices, err := s.store.Invoices().FindUnpaidPastDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: find past due invoices: %v", ErrStoreFailure, err)
	}

	flipped := 0
	for i := range invoices {
		invoice := &invoices[i]
		err := s.store.Atomic(ctx, func(st repository.Store) error {
			current, err := st.Invoices().FindByIDForUpdate(ctx, invoice.ID)
			if err != nil {
				return wrapLookup(err, "invoice")
			}
			// Re-check under the lock: a payment may have landed since the scan.
			if current.Status != models.InvoiceStatusUnpaid || !current.IsPastDue(now) {
				return nil
			}
			current.Status = models.InvoiceStatusOverdue
			if err := st.Invoices().Update(ctx, current); err != nil {
				return fmt.Errorf("%w: update invoice status: %v", ErrStoreFailure, err)
			}
			flipped++
			return nil
		})
		if err != nil {
			logger.Error("overdue sweep failed for invoice", "invoice_id", invoice.ID, "error", err)
		}
	}

	if flipped > 0 {
		logger.Info("overdue sweep complete", "flipped", flipped)
	}
	return flipped, nil
}
