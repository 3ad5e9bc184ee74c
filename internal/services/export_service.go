package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
)

// ExportService renders ledger and invoice data into downloadable files
type ExportService struct {
	store  repository.Store
	report *ReportService
}

// NewExportService creates a new export service
func NewExportService(store repository.Store, report *ReportService) *ExportService {
	return &ExportService{store: store, report: report}
}

// CashFlowCSV writes the entries matching query as a CSV file
func (s *ExportService) CashFlowCSV(ctx context.Context, query *repository.ListQuery) ([]byte, string, error) {
	entries, _, err := s.store.CashFlows().List(ctx, query)
	if err != nil {
		return nil, "", fmt.Errorf("%w: list cash flow entries: %v", ErrStoreFailure, err)
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"ID", "Date", "Type", "Category", "Amount", "Description", "Account", "Linked Payment"})
	for i := range entries {
		e := &entries[i]
		accountName := ""
		if e.BankAccount != nil {
			accountName = e.BankAccount.Name
		}
		paymentID := ""
		if e.PaymentID != nil {
			paymentID = e.PaymentID.String()
		}
		_ = writer.Write([]string{
			fmt.Sprintf("%d", e.ID),
			e.EntryDate.Format("2006-01-02"),
			e.Type,
			e.Category,
			e.Amount.StringFixed(2),
			e.Description,
			accountName,
			paymentID,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("cash_flow_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// FinancialSummaryXLSX renders the period summary as a spreadsheet
func (s *ExportService) FinancialSummaryXLSX(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	summary, err := s.report.FinancialSummaryForRange(ctx, from, to)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Summary"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	_ = f.SetCellValue(sheet, "A1", "Financial Summary")
	_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)
	_ = f.SetCellValue(sheet, "A2", fmt.Sprintf("%s to %s",
		from.Format("2006-01-02"), to.Format("2006-01-02")))

	_ = f.SetCellValue(sheet, "A4", "Total Income")
	_ = f.SetCellValue(sheet, "B4", summary.TotalIncome.StringFixed(2))
	_ = f.SetCellValue(sheet, "A5", "Total Expense")
	_ = f.SetCellValue(sheet, "B5", summary.TotalExpense.StringFixed(2))
	_ = f.SetCellValue(sheet, "A6", "Net")
	_ = f.SetCellValue(sheet, "B6", summary.Net.StringFixed(2))

	_ = f.SetCellValue(sheet, "A8", "Type")
	_ = f.SetCellValue(sheet, "B8", "Category")
	_ = f.SetCellValue(sheet, "C8", "Total")
	_ = f.SetCellValue(sheet, "D8", "Entries")
	row := 9
	for _, cat := range summary.ByCategory {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), cat.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), cat.Category)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), cat.Total.StringFixed(2))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), cat.Count)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("financial_summary_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// InvoicePDF renders one invoice as a printable PDF
func (s *ExportService) InvoicePDF(ctx context.Context, invoiceID uuid.UUID) ([]byte, string, error) {
	invoice, err := s.store.Invoices().FindByID(ctx, invoiceID)
	if err != nil {
		return nil, "", wrapLookup(err, "invoice")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Invoice "+invoice.InvoiceNumber)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	if invoice.Client.ID != uuid.Nil {
		pdf.Cell(60, 8, "Billed to:")
		pdf.Cell(80, 8, invoice.Client.Name)
		pdf.Ln(6)
		pdf.Cell(60, 8, "Email:")
		pdf.Cell(80, 8, invoice.Client.Email)
		pdf.Ln(6)
	}

	pdf.Cell(60, 8, "Issued:")
	pdf.Cell(80, 8, invoice.CreatedAt.Format("2006-01-02"))
	pdf.Ln(6)
	pdf.Cell(60, 8, "Due date:")
	pdf.Cell(80, 8, invoice.DueDate.Format("2006-01-02"))
	pdf.Ln(6)
	pdf.Cell(60, 8, "Status:")
	pdf.Cell(80, 8, invoice.EffectiveStatus(time.Now()))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(60, 10, "Total amount:")
	pdf.Cell(80, 10, invoice.TotalAmount.StringFixed(2))
	pdf.Ln(10)

	if invoice.Status == models.InvoiceStatusPaid {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(0, 128, 0)
		pdf.Cell(40, 8, "PAID")
		pdf.SetTextColor(0, 0, 0)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("invoice_%s.pdf", invoice.InvoiceNumber)
	return buf.Bytes(), filename, nil
}
