package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/internal/services"
)

func recordError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	return w
}

func TestRespondError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: amount must be positive", services.ErrValidation), http.StatusUnprocessableEntity},
		{services.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{services.ErrEntryLinkedToPayment, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: invoice already paid", services.ErrInvalidTransition), http.StatusConflict},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrUnauthorized, http.StatusForbidden},
		{services.ErrStoreFailure, http.StatusInternalServerError},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, recordError(tc.err).Code, "error %v", tc.err)
	}
}

func TestParseListQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/payments?page=3&per_page=50&search=maju&sort=payment_date-desc", nil)

	query := parseListQuery(c)
	assert.Equal(t, 3, query.Page)
	assert.Equal(t, 50, query.PerPage)
	assert.Equal(t, "maju", query.Filters["search_term"])
	assert.Equal(t, "payment_date", query.SortBy)
	assert.Equal(t, "desc", query.SortDir)
}

func TestPagination(t *testing.T) {
	query := repository.NewListQuery()
	query.Page = 2
	query.PerPage = 20

	envelope := pagination(query, 45)
	assert.Equal(t, int64(45), envelope["total"])
	assert.Equal(t, int64(3), envelope["total_pages"])
}
