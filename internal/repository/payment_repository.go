package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasira/billing-api/internal/models"
)

// PaymentRepository defines the interface for payment data access
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query *ListQuery) ([]models.Payment, int64, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	CountAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	// FindStalePending returns payments whose applied flag never flipped,
	// older than the cutoff. These are leftovers of aborted record attempts.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Invoice.Client").
		Preload("BankAccount").
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Payment{}, "id = ?", id).Error
}

func (r *paymentRepository) List(ctx context.Context, query *ListQuery) ([]models.Payment, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Payment{})

	if method := query.Filters["method"]; method != "" {
		db = db.Where("payments.method = ?", method)
	}
	if invoiceID := query.Filters["invoice_id"]; invoiceID != "" {
		db = db.Where("payments.invoice_id = ?", invoiceID)
	}
	if accountID := query.Filters["bank_account_id"]; accountID != "" {
		db = db.Where("payments.bank_account_id = ?", accountID)
	}
	if start := query.Filters["start_date"]; start != "" {
		db = db.Where("payments.payment_date >= ?", start)
	}
	if end := query.Filters["end_date"]; end != "" {
		db = db.Where("payments.payment_date <= ?", end)
	}
	if term := query.Filters["search_term"]; term != "" {
		like := "%" + term + "%"
		db = db.Joins("JOIN invoices ON invoices.id = payments.invoice_id").
			Joins("JOIN clients ON clients.id = invoices.client_id").
			Where("invoices.invoice_number ILIKE ? OR clients.name ILIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "payments.payment_date DESC"
	if query.SortBy != "" {
		dir := "ASC"
		if query.SortDir == "desc" {
			dir = "DESC"
		}
		switch query.SortBy {
		case "payment_date", "amount", "method", "created_at":
			order = fmt.Sprintf("payments.%s %s", query.SortBy, dir)
		}
	}

	var payments []models.Payment
	err := db.Preload("Invoice.Client").
		Preload("BankAccount").
		Order(order).
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&payments).Error
	return payments, total, err
}

func (r *paymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) CountAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("invoice_id = ? AND applied = ?", invoiceID, true).
		Count(&count).Error
	return count, err
}

func (r *paymentRepository) FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("applied = ? AND created_at < ?", false, cutoff).
		Find(&payments).Error
	return payments, err
}
