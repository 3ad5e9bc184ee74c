package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kasira/billing-api/internal/models"
)

// Permission keys gate whole route groups rather than individual fields.
// The keys follow the console's menu structure: master data, keuangan
// (financial operations) and laporan (reports).
const (
	PermDashboardView = "dashboard.view"

	PermUserView      = "master.user.view"
	PermUserManage    = "master.user.manage"
	PermClientView    = "master.client.view"
	PermClientManage  = "master.client.manage"
	PermProductView   = "master.product.view"
	PermProductManage = "master.product.manage"
	PermKasView       = "master.kas.view"
	PermKasManage     = "master.kas.manage"

	PermSubscriptionView   = "keuangan.subscription.view"
	PermSubscriptionManage = "keuangan.subscription.manage"
	PermInvoiceView        = "keuangan.invoice.view"
	PermInvoiceManage      = "keuangan.invoice.manage"
	PermPaymentView        = "keuangan.payment.view"
	PermPaymentManage      = "keuangan.payment.manage"
	PermCashFlowView       = "keuangan.cashflow.view"
	PermCashFlowManage     = "keuangan.cashflow.manage"

	PermReportView   = "laporan.view"
	PermReportExport = "laporan.export"
)

// rolePermissions maps each role to the keys it holds. ADMIN is not listed:
// HasPermission short-circuits it to true for every key.
var rolePermissions = map[string]map[string]bool{
	models.RoleKeuangan: permSet(
		PermDashboardView,
		PermClientView,
		PermSubscriptionView, PermSubscriptionManage,
		PermInvoiceView, PermInvoiceManage,
		PermPaymentView, PermPaymentManage,
		PermCashFlowView, PermCashFlowManage,
		PermKasView,
		PermReportView, PermReportExport,
	),
	models.RoleKasir: permSet(
		PermDashboardView,
		PermClientView,
		PermSubscriptionView,
		PermInvoiceView,
		PermPaymentView,
		PermCashFlowView,
		PermReportView,
	),
	models.RoleUser: permSet(
		PermDashboardView,
		PermClientView,
		PermSubscriptionView,
		PermInvoiceView,
		PermPaymentView,
		PermCashFlowView,
		PermReportView,
	),
}

func permSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		set[key] = true
	}
	return set
}

// HasPermission reports whether a role holds a permission key
func HasPermission(role, permission string) bool {
	if role == models.RoleAdmin {
		return true
	}
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[permission]
}

// RequirePermission returns a middleware that rejects requests whose
// authenticated role lacks the permission key. Must run after Auth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(GetUserRole(c), permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "You do not have access to this section",
			})
			return
		}
		c.Next()
	}
}
