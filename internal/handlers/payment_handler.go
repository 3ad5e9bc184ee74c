package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/services"
)

type PaymentHandler struct {
	movementService *services.MovementService
}

func NewPaymentHandler(movementService *services.MovementService) *PaymentHandler {
	return &PaymentHandler{movementService: movementService}
}

type RecordPaymentRequest struct {
	InvoiceID     uuid.UUID       `json:"invoice_id" binding:"required"`
	BankAccountID uuid.UUID       `json:"bank_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Method        string          `json:"method" binding:"required"`
	Notes         *string         `json:"notes"`
	PaymentDate   *time.Time      `json:"payment_date"`
}

// @Summary List Payments
// @Description Get a paginated list of payments
// @Tags Payments
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	query := parseListQuery(c)
	query.Filters["invoice_id"] = c.Query("invoice_id")
	query.Filters["bank_account_id"] = c.Query("bank_account_id")
	query.Filters["start_date"] = c.Query("start_date")
	query.Filters["end_date"] = c.Query("end_date")

	payments, total, err := h.movementService.ListPayments(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(payments))
	for i := range payments {
		responses = append(responses, payments[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":   responses,
		"pagination": pagination(query, total),
	})
}

// @Summary Get Payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} models.PaymentResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{id} [get]
func (h *PaymentHandler) Show(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.movementService.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment.ToResponse())
}

// @Summary Record Payment
// @Description Records a payment against an invoice. The invoice status
// @Description change, the bank balance credit and the ledger entry commit
// @Description as one unit.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body RecordPaymentRequest true "Payment"
// @Success 201 {object} models.PaymentResponse
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.RecordPaymentInput{
		InvoiceID:     req.InvoiceID,
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		Method:        req.Method,
		Notes:         req.Notes,
	}
	if req.PaymentDate != nil {
		input.PaymentDate = *req.PaymentDate
	}

	payment, err := h.movementService.RecordPayment(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment.ToResponse())
}

// @Summary Reverse Payment
// @Description Undoes every effect of an applied payment. The payment row
// @Description stays for audit, marked not applied.
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{id}/reverse [post]
func (h *PaymentHandler) Reverse(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.movementService.ReversePayment(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment reversed"})
}

// @Summary Delete Payment
// @Description Reverses the payment if still applied, then removes the row
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Destroy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.movementService.DeletePayment(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment deleted"})
}
