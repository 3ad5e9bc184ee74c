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

// InvoiceRepository defines the interface for invoice data access
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// FindByIDForUpdate loads the invoice under a row lock. Only meaningful
	// inside Store.Atomic; it is the serialization point that makes
	// "at most one applied payment per invoice" race-free.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query *ListQuery) ([]models.Invoice, int64, error)
	NextInvoiceNumber(ctx context.Context, now time.Time) (string, error)
	// FindUnpaidPastDue returns stored-UNPAID invoices whose due date has
	// passed, for the overdue sweep.
	FindUnpaidPastDue(ctx context.Context, now time.Time) ([]models.Invoice, error)
	// CountByStatus returns invoice counts keyed by stored status
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Client").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id).Error
}

func (r *invoiceRepository) List(ctx context.Context, query *ListQuery) ([]models.Invoice, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Invoice{})

	if status := query.Filters["status"]; status != "" {
		db = db.Where("invoices.status = ?", status)
	}
	if clientID := query.Filters["client_id"]; clientID != "" {
		db = db.Where("invoices.client_id = ?", clientID)
	}
	if start := query.Filters["start_date"]; start != "" {
		db = db.Where("invoices.due_date >= ?", start)
	}
	if end := query.Filters["end_date"]; end != "" {
		db = db.Where("invoices.due_date <= ?", end)
	}
	if term := query.Filters["search_term"]; term != "" {
		like := "%" + term + "%"
		db = db.Joins("JOIN clients ON clients.id = invoices.client_id").
			Where("invoices.invoice_number ILIKE ? OR clients.name ILIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "invoices.created_at DESC"
	if query.SortBy != "" {
		dir := "ASC"
		if query.SortDir == "desc" {
			dir = "DESC"
		}
		switch query.SortBy {
		case "due_date", "total_amount", "status", "invoice_number", "created_at":
			order = fmt.Sprintf("invoices.%s %s", query.SortBy, dir)
		}
	}

	var invoices []models.Invoice
	err := db.Preload("Client").
		Order(order).
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&invoices).Error
	return invoices, total, err
}

// NextInvoiceNumber generates INV-YYYYMM-NNNN, restarting the sequence each
// month. The count is taken inside the caller's transaction; concurrent
// creations in the same instant are disambiguated by the unique index on
// invoice_number and retried by the caller.
func (r *invoiceRepository) NextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s", now.Format("200601"))

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"-%").
		Count(&count).Error
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%04d", prefix, count+1), nil
}

func (r *invoiceRepository) FindUnpaidPastDue(ctx context.Context, now time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", models.InvoiceStatusUnpaid, now).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
