package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kasira/billing-api/internal/jobs"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Client       *ClientHandler
	Product      *ProductHandler
	Subscription *SubscriptionHandler
	Invoice      *InvoiceHandler
	Payment      *PaymentHandler
	CashFlow     *CashFlowHandler
	BankAccount  *BankAccountHandler
	Report       *ReportHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, worker *jobs.Worker) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(worker),
		Auth:         NewAuthHandler(svcs.Auth),
		User:         NewUserHandler(svcs.User),
		Client:       NewClientHandler(svcs.Client),
		Product:      NewProductHandler(svcs.Product),
		Subscription: NewSubscriptionHandler(svcs.Subscription),
		Invoice:      NewInvoiceHandler(svcs.Invoice, svcs.Export),
		Payment:      NewPaymentHandler(svcs.Movement),
		CashFlow:     NewCashFlowHandler(svcs.Movement, svcs.CashFlow, svcs.Export),
		BankAccount:  NewBankAccountHandler(svcs.BankAccount, svcs.CashFlow),
		Report:       NewReportHandler(svcs.Report, svcs.Export),
	}
}

// respondError maps a service error onto an HTTP status. Handlers never need
// to know which operation failed, only which class of failure it was.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrEntryLinkedToPayment):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parseListQuery reads the common pagination, search and sort parameters
func parseListQuery(c *gin.Context) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if search := c.Query("search"); search != "" {
		query.Filters["search_term"] = search
	}

	// Sort parameter format: field-direction
	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	return query
}

// parseUUIDParam reads a UUID path parameter, writing a 400 on failure
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// pagination builds the standard pagination envelope
func pagination(query *repository.ListQuery, total int64) gin.H {
	perPage := int64(query.Limit())
	return gin.H{
		"page":        query.Page,
		"per_page":    query.PerPage,
		"total":       total,
		"total_pages": (total + perPage - 1) / perPage,
	}
}
