package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/middleware"
	"github.com/kasira/billing-api/internal/services"
)

type CashFlowHandler struct {
	movementService *services.MovementService
	cashFlowService *services.CashFlowService
	exportService   *services.ExportService
}

func NewCashFlowHandler(movementService *services.MovementService, cashFlowService *services.CashFlowService, exportService *services.ExportService) *CashFlowHandler {
	return &CashFlowHandler{
		movementService: movementService,
		cashFlowService: cashFlowService,
		exportService:   exportService,
	}
}

type ManualCashFlowRequest struct {
	Type          string          `json:"type" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description"`
	EntryDate     *time.Time      `json:"entry_date"`
	BankAccountID *uuid.UUID      `json:"bank_account_id"`
}

func (r *ManualCashFlowRequest) toInput(c *gin.Context) services.ManualCashFlowInput {
	input := services.ManualCashFlowInput{
		Type:          r.Type,
		Category:      r.Category,
		Amount:        r.Amount,
		Description:   r.Description,
		BankAccountID: r.BankAccountID,
	}
	if r.EntryDate != nil {
		input.EntryDate = *r.EntryDate
	}
	if userID := middleware.GetUserID(c); userID != 0 {
		input.CreatedByUserID = &userID
	}
	return input
}

// @Summary List Cash Flow Entries
// @Description Get a paginated list of ledger entries
// @Tags CashFlow
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param type query string false "INCOME or EXPENSE"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /cash-flow [get]
func (h *CashFlowHandler) Index(c *gin.Context) {
	query := parseListQuery(c)
	query.Filters["type"] = c.Query("type")
	query.Filters["category"] = c.Query("category")
	query.Filters["bank_account_id"] = c.Query("bank_account_id")
	query.Filters["start_date"] = c.Query("start_date")
	query.Filters["end_date"] = c.Query("end_date")

	entries, total, err := h.cashFlowService.ListEntries(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(entries))
	for i := range entries {
		responses = append(responses, entries[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":    responses,
		"pagination": pagination(query, total),
	})
}

// @Summary Record Manual Entry
// @Description Appends a manual ledger entry; an attached bank account gets
// @Description the balance delta in the same unit
// @Tags CashFlow
// @Accept json
// @Produce json
// @Param request body ManualCashFlowRequest true "Entry"
// @Success 201 {object} models.CashFlowEntryResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /cash-flow [post]
func (h *CashFlowHandler) Create(c *gin.Context) {
	var req ManualCashFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.movementService.RecordManualCashFlow(c.Request.Context(), req.toInput(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry.ToResponse())
}

// @Summary Edit Manual Entry
// @Description Replaces a manual entry; old balance effect is undone and the
// @Description new one applied atomically. Payment-linked entries are refused.
// @Tags CashFlow
// @Accept json
// @Produce json
// @Param id path int true "Entry ID"
// @Param request body ManualCashFlowRequest true "New fields"
// @Success 200 {object} models.CashFlowEntryResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /cash-flow/{id} [put]
func (h *CashFlowHandler) Update(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}

	var req ManualCashFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.movementService.EditManualCashFlow(c.Request.Context(), id, req.toInput(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.ToResponse())
}

// @Summary Reverse Manual Entry
// @Description Removes a manual entry and undoes its balance effect
// @Tags CashFlow
// @Produce json
// @Param id path int true "Entry ID"
// @Success 200 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /cash-flow/{id} [delete]
func (h *CashFlowHandler) Destroy(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}

	if err := h.movementService.ReverseManualCashFlow(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry reversed"})
}

// @Summary Export Cash Flow CSV
// @Tags CashFlow
// @Produce text/csv
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /cash-flow/export [get]
func (h *CashFlowHandler) ExportCSV(c *gin.Context) {
	query := parseListQuery(c)
	query.PerPage = 100
	query.Filters["type"] = c.Query("type")
	query.Filters["bank_account_id"] = c.Query("bank_account_id")
	query.Filters["start_date"] = c.Query("start_date")
	query.Filters["end_date"] = c.Query("end_date")

	data, filename, err := h.exportService.CashFlowCSV(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", data)
}

func parseEntryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
