package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// ReconciliationService repairs the leftovers of interrupted work. Payments
// are inserted with applied=false and flipped true as the final write of the
// recording unit, so any payment still pending after a grace period is debris
// from an attempt whose transaction never committed the flip, and is safe to
// roll back.
type ReconciliationService struct {
	store    repository.Store
	cashFlow *CashFlowService
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(store repository.Store, cashFlow *CashFlowService) *ReconciliationService {
	return &ReconciliationService{store: store, cashFlow: cashFlow}
}

// StalePendingGrace is how long a payment may sit unapplied before the sweep
// treats it as debris. Far longer than any transaction lives.
const StalePendingGrace = 10 * time.Minute

// RecoverPendingPayments removes payments whose applied flag never flipped
// and that are older than the grace period. Sub-effects, if any leaked, are
// undone first through the same path DeletePayment uses. Returns how many
// payments it cleaned up.
func (r *ReconciliationService) RecoverPendingPayments(ctx context.Context, now time.Time) (int, error) {
	stale, err := r.store.Payments().FindStalePending(ctx, now.Add(-StalePendingGrace))
	if err != nil {
		return 0, fmt.Errorf("%w: find stale pending payments: %v", ErrStoreFailure, err)
	}

	cleaned := 0
	for i := range stale {
		payment := &stale[i]
		err := r.store.Atomic(ctx, func(st repository.Store) error {
			current, err := st.Payments().FindByIDForUpdate(ctx, payment.ID)
			if err != nil {
				return wrapLookup(err, "payment")
			}
			// Re-check under the lock: the flag may have flipped since the scan.
			if current.Applied {
				return nil
			}

			// A pending payment should have no ledger entry; if one exists the
			// recording unit was torn mid-flight, so undo it with its balance.
			if entry, err := st.CashFlows().FindByPaymentID(ctx, current.ID); err == nil {
				account, err := st.BankAccounts().FindByIDForUpdate(ctx, current.BankAccountID)
				if err != nil {
					return wrapLookup(err, "bank account")
				}
				if rows, err := st.CashFlows().DeleteByPaymentID(ctx, current.ID); err != nil {
					return fmt.Errorf("%w: remove leaked entry: %v", ErrStoreFailure, err)
				} else if rows > 0 {
					account.Balance = account.Balance.Sub(entry.Amount)
					if err := st.BankAccounts().Update(ctx, account); err != nil {
						return fmt.Errorf("%w: undo leaked credit: %v", ErrStoreFailure, err)
					}
				}

				invoice, err := st.Invoices().FindByIDForUpdate(ctx, current.InvoiceID)
				if err != nil {
					return wrapLookup(err, "invoice")
				}
				if invoice.Status == models.InvoiceStatusPaid {
					invoice.Status = models.UnpaidStatus(invoice.DueDate, now)
					if err := st.Invoices().Update(ctx, invoice); err != nil {
						return fmt.Errorf("%w: restore invoice status: %v", ErrStoreFailure, err)
					}
				}
			}

			if err := st.Payments().Delete(ctx, current.ID); err != nil {
				return fmt.Errorf("%w: delete stale payment: %v", ErrStoreFailure, err)
			}
			cleaned++
			return nil
		})
		if err != nil {
			logger.Error("pending recovery failed for payment", "payment_id", payment.ID, "error", err)
		}
	}

	if cleaned > 0 {
		logger.Info("pending payment recovery complete", "cleaned", cleaned)
	}
	return cleaned, nil
}

// AuditBalances verifies every account's stored balance against the ledger
// and logs any drift. It never repairs; a drifted balance means a bug or a
// manual database edit, and either deserves eyes first.
func (r *ReconciliationService) AuditBalances(ctx context.Context) ([]BalanceCheck, error) {
	checks, err := r.cashFlow.VerifyAllBalances(ctx)
	if err != nil {
		return nil, err
	}

	for _, check := range checks {
		if !check.Consistent {
			logger.Error("balance drift detected",
				"account_id", check.BankAccountID,
				"account_name", check.AccountName,
				"stored", check.Stored.String(),
				"reconstructed", check.Reconstructed.String(),
				"drift", check.Drift.String())
		}
	}
	return checks, nil
}
