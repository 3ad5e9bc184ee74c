package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kasira/billing-api/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	exportService *services.ExportService
}

func NewReportHandler(reportService *services.ReportService, exportService *services.ExportService) *ReportHandler {
	return &ReportHandler{reportService: reportService, exportService: exportService}
}

// parseRange reads from/to query params, defaulting to the current month
func parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	if s := c.Query("from"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if s := c.Query("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	return from, to, true
}

// @Summary Financial Summary
// @Description Income, expense and net over a date range, broken down by category
// @Tags Reports
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} services.FinancialSummary
// @Security BearerAuth
// @Router /reports/financial-summary [get]
func (h *ReportHandler) FinancialSummary(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	summary, err := h.reportService.FinancialSummaryForRange(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// @Summary Invoice Overview
// @Description Invoice counts per status
// @Tags Reports
// @Produce json
// @Success 200 {object} services.InvoiceOverview
// @Security BearerAuth
// @Router /reports/invoice-overview [get]
func (h *ReportHandler) InvoiceOverview(c *gin.Context) {
	overview, err := h.reportService.InvoiceStatusOverview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// @Summary Export Financial Summary XLSX
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /reports/financial-summary/export [get]
func (h *ReportHandler) ExportFinancialSummary(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.FinancialSummaryXLSX(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
