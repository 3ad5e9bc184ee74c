package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/middleware"
	"github.com/kasira/billing-api/internal/services"
)

type BankAccountHandler struct {
	bankAccountService *services.BankAccountService
	cashFlowService    *services.CashFlowService
}

func NewBankAccountHandler(bankAccountService *services.BankAccountService, cashFlowService *services.CashFlowService) *BankAccountHandler {
	return &BankAccountHandler{
		bankAccountService: bankAccountService,
		cashFlowService:    cashFlowService,
	}
}

type CreateBankAccountRequest struct {
	Name           string          `json:"name" binding:"required"`
	BankName       string          `json:"bank_name"`
	AccountNumber  string          `json:"account_number"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type UpdateBankAccountRequest struct {
	Name          *string `json:"name"`
	BankName      *string `json:"bank_name"`
	AccountNumber *string `json:"account_number"`
	IsActive      *bool   `json:"is_active"`
}

type AdjustBalanceRequest struct {
	Delta  decimal.Decimal `json:"delta" binding:"required"`
	Reason string          `json:"reason" binding:"required"`
}

// @Summary List Bank Accounts
// @Tags BankAccounts
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /bank-accounts [get]
func (h *BankAccountHandler) Index(c *gin.Context) {
	query := parseListQuery(c)
	query.Filters["is_active"] = c.Query("is_active")

	accounts, total, err := h.bankAccountService.ListBankAccounts(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, accounts[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"bank_accounts": responses,
		"pagination":    pagination(query, total),
	})
}

// @Summary Get Bank Account
// @Tags BankAccounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} models.BankAccountResponse
// @Security BearerAuth
// @Router /bank-accounts/{id} [get]
func (h *BankAccountHandler) Show(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	account, err := h.bankAccountService.GetBankAccount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account.ToResponse())
}

// @Summary Create Bank Account
// @Tags BankAccounts
// @Accept json
// @Produce json
// @Param request body CreateBankAccountRequest true "Account"
// @Success 201 {object} models.BankAccountResponse
// @Security BearerAuth
// @Router /bank-accounts [post]
func (h *BankAccountHandler) Create(c *gin.Context) {
	var req CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.bankAccountService.CreateBankAccount(c.Request.Context(), services.CreateBankAccountInput{
		Name:           req.Name,
		BankName:       req.BankName,
		AccountNumber:  req.AccountNumber,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account.ToResponse())
}

// @Summary Update Bank Account
// @Tags BankAccounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body UpdateBankAccountRequest true "Fields"
// @Success 200 {object} models.BankAccountResponse
// @Security BearerAuth
// @Router /bank-accounts/{id} [put]
func (h *BankAccountHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.bankAccountService.UpdateBankAccount(c.Request.Context(), id, services.UpdateBankAccountInput{
		Name:          req.Name,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		IsActive:      req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account.ToResponse())
}

// @Summary Delete Bank Account
// @Description Only accounts without ledger history can be deleted
// @Tags BankAccounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /bank-accounts/{id} [delete]
func (h *BankAccountHandler) Destroy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.bankAccountService.DeleteBankAccount(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "bank account deleted"})
}

// @Summary Adjust Balance
// @Description Corrects the balance through a Balance Adjustment ledger entry
// @Tags BankAccounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body AdjustBalanceRequest true "Adjustment"
// @Success 200 {object} models.CashFlowEntryResponse
// @Security BearerAuth
// @Router /bank-accounts/{id}/adjust [post]
func (h *BankAccountHandler) Adjust(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID *uint
	if uid := middleware.GetUserID(c); uid != 0 {
		userID = &uid
	}

	entry, err := h.bankAccountService.Adjust(c.Request.Context(), id, req.Delta, req.Reason, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry.ToResponse())
}

// @Summary Verify Balance
// @Description Reconstructs the balance from the ledger and reports drift
// @Tags BankAccounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} services.BalanceCheck
// @Security BearerAuth
// @Router /bank-accounts/{id}/verify [get]
func (h *BankAccountHandler) Verify(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	check, err := h.cashFlowService.VerifyAccountBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, check)
}
