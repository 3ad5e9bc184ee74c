package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasira/billing-api/internal/models"
)

// CashFlowRepository defines the interface for cash-flow ledger data access
type CashFlowRepository interface {
	FindByID(ctx context.Context, id uint) (*models.CashFlowEntry, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.CashFlowEntry, error)
	Create(ctx context.Context, entry *models.CashFlowEntry) error
	// Delete removes the entry and reports how many rows went away. Callers
	// that reverse balances use the count to make a second reversal of the
	// same entry a detectable no-op instead of a double subtraction.
	Delete(ctx context.Context, id uint) (int64, error)
	DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) (int64, error)
	List(ctx context.Context, query *ListQuery) ([]models.CashFlowEntry, int64, error)
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]models.CashFlowEntry, error)
	// SumSignedByAccount returns Σ(income amounts) − Σ(expense amounts) over
	// the account's entries. Together with the account's initial balance it
	// reconstructs the stored running balance.
	SumSignedByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	// SummarizeRange groups entries in [from, to] by type and category and
	// sums their amounts, for period reporting.
	SummarizeRange(ctx context.Context, from, to time.Time) ([]CategoryTotal, error)
}

// CategoryTotal is one row of a period summary
type CategoryTotal struct {
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type cashFlowRepository struct {
	db *gorm.DB
}

// NewCashFlowRepository creates a new cash-flow repository
func NewCashFlowRepository(db *gorm.DB) CashFlowRepository {
	return &cashFlowRepository{db: db}
}

func (r *cashFlowRepository) FindByID(ctx context.Context, id uint) (*models.CashFlowEntry, error) {
	var entry models.CashFlowEntry
	err := r.db.WithContext(ctx).
		Preload("BankAccount").
		First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *cashFlowRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.CashFlowEntry, error) {
	var entry models.CashFlowEntry
	err := r.db.WithContext(ctx).
		First(&entry, "payment_id = ?", paymentID).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *cashFlowRepository) Create(ctx context.Context, entry *models.CashFlowEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *cashFlowRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.CashFlowEntry{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *cashFlowRepository) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.CashFlowEntry{}, "payment_id = ?", paymentID)
	return res.RowsAffected, res.Error
}

func (r *cashFlowRepository) List(ctx context.Context, query *ListQuery) ([]models.CashFlowEntry, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.CashFlowEntry{})

	if t := query.Filters["type"]; t != "" {
		db = db.Where("cash_flow_entries.type = ?", t)
	}
	if category := query.Filters["category"]; category != "" {
		db = db.Where("cash_flow_entries.category = ?", category)
	}
	if accountID := query.Filters["bank_account_id"]; accountID != "" {
		db = db.Where("cash_flow_entries.bank_account_id = ?", accountID)
	}
	if start := query.Filters["start_date"]; start != "" {
		db = db.Where("cash_flow_entries.entry_date >= ?", start)
	}
	if end := query.Filters["end_date"]; end != "" {
		db = db.Where("cash_flow_entries.entry_date <= ?", end)
	}
	if term := query.Filters["search_term"]; term != "" {
		like := "%" + term + "%"
		db = db.Where("cash_flow_entries.description ILIKE ? OR cash_flow_entries.category ILIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "cash_flow_entries.entry_date DESC, cash_flow_entries.id DESC"
	if query.SortBy != "" {
		dir := "ASC"
		if query.SortDir == "desc" {
			dir = "DESC"
		}
		switch query.SortBy {
		case "entry_date", "amount", "type", "category":
			order = fmt.Sprintf("cash_flow_entries.%s %s", query.SortBy, dir)
		}
	}

	var entries []models.CashFlowEntry
	err := db.Preload("BankAccount").
		Order(order).
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&entries).Error
	return entries, total, err
}

func (r *cashFlowRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]models.CashFlowEntry, error) {
	var entries []models.CashFlowEntry
	err := r.db.WithContext(ctx).
		Where("bank_account_id = ?", accountID).
		Order("entry_date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *cashFlowRepository) SumSignedByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}

	err := r.db.WithContext(ctx).
		Model(&models.CashFlowEntry{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0) as total",
			models.CashFlowTypeIncome).
		Where("bank_account_id = ?", accountID).
		Scan(&result).Error

	return result.Total, err
}

func (r *cashFlowRepository) SummarizeRange(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	var rows []CategoryTotal
	err := r.db.WithContext(ctx).
		Model(&models.CashFlowEntry{}).
		Select("type, category, COALESCE(SUM(amount), 0) as total, COUNT(*) as count").
		Where("entry_date >= ? AND entry_date <= ?", from, to).
		Group("type, category").
		Order("type, category").
		Scan(&rows).Error
	return rows, err
}
