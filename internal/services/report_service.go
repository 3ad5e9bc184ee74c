package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
)

// ReportService aggregates ledger and invoice data for the console dashboard
type ReportService struct {
	store repository.Store
}

// NewReportService creates a new report service
func NewReportService(store repository.Store) *ReportService {
	return &ReportService{store: store}
}

// FinancialSummary is the period report over the cash-flow ledger
type FinancialSummary struct {
	From         time.Time                  `json:"from"`
	To           time.Time                  `json:"to"`
	TotalIncome  decimal.Decimal            `json:"total_income"`
	TotalExpense decimal.Decimal            `json:"total_expense"`
	Net          decimal.Decimal            `json:"net"`
	ByCategory   []repository.CategoryTotal `json:"by_category"`
}

// InvoiceOverview is the invoice status breakdown
type InvoiceOverview struct {
	Unpaid  int64 `json:"unpaid"`
	Paid    int64 `json:"paid"`
	Overdue int64 `json:"overdue"`
	Total   int64 `json:"total"`
}

// FinancialSummaryForRange sums ledger entries in [from, to] by type and
// category
func (s *ReportService) FinancialSummaryForRange(ctx context.Context, from, to time.Time) (*FinancialSummary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes start", ErrValidation)
	}

	rows, err := s.store.CashFlows().SummarizeRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: summarize ledger: %v", ErrStoreFailure, err)
	}

	summary := &FinancialSummary{
		From:         from,
		To:           to,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		ByCategory:   rows,
	}
	for _, row := range rows {
		if row.Type == models.CashFlowTypeIncome {
			summary.TotalIncome = summary.TotalIncome.Add(row.Total)
		} else {
			summary.TotalExpense = summary.TotalExpense.Add(row.Total)
		}
	}
	summary.Net = summary.TotalIncome.Sub(summary.TotalExpense)
	return summary, nil
}

// InvoiceStatusOverview counts invoices per status
func (s *ReportService) InvoiceStatusOverview(ctx context.Context) (*InvoiceOverview, error) {
	counts, err := s.store.Invoices().CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count invoices: %v", ErrStoreFailure, err)
	}

	overview := &InvoiceOverview{
		Unpaid:  counts[models.InvoiceStatusUnpaid],
		Paid:    counts[models.InvoiceStatusPaid],
		Overdue: counts[models.InvoiceStatusOverdue],
	}
	overview.Total = overview.Unpaid + overview.Paid + overview.Overdue
	return overview, nil
}
