package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Setup("test")
	os.Exit(m.Run())
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// movementFixture seeds one unpaid invoice and one active account
func movementFixture(t *testing.T) (*memStore, *MovementService, models.Invoice, models.BankAccount) {
	t.Helper()
	store := newMemStore()
	invoice := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusUnpaid,
		DueDate:     time.Now().Add(14 * 24 * time.Hour),
	})
	account := store.seedAccount(models.BankAccount{
		Name:           "Kas Utama",
		BankName:       "BCA",
		AccountNumber:  "1234567890",
		InitialBalance: money("500000"),
		Balance:        money("500000"),
		IsActive:       true,
	})
	return store, NewMovementService(store), invoice, account
}

func TestRecordPayment_AppliesAllEffects(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.True(t, payment.Applied)

	assert.Equal(t, models.InvoiceStatusPaid, store.invoice(invoice.ID).Status)
	assert.True(t, store.account(account.ID).Balance.Equal(money("600000")))

	entry, err := store.CashFlows().FindByPaymentID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CashFlowTypeIncome, entry.Type)
	assert.Equal(t, models.CategoryPaymentReceived, entry.Category)
	assert.True(t, entry.Amount.Equal(money("100000")))
	require.NotNil(t, entry.BankAccountID)
	assert.Equal(t, account.ID, *entry.BankAccountID)
}

func TestRecordPayment_RejectsSecondPayment(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	in := RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	}
	_, err := svc.RecordPayment(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The failed attempt must leave nothing behind
	assert.True(t, store.account(account.ID).Balance.Equal(money("600000")))
	payments, err := store.Payments().FindByInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPayment_AcceptsOverdueInvoice(t *testing.T) {
	store, svc, _, account := movementFixture(t)
	overdue := store.seedInvoice(models.Invoice{
		TotalAmount: money("75000"),
		Status:      models.InvoiceStatusOverdue,
		DueDate:     time.Now().Add(-48 * time.Hour),
	})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     overdue.ID,
		BankAccountID: account.ID,
		Amount:        money("75000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, store.invoice(overdue.ID).Status)
}

func TestRecordPayment_RejectsInactiveAccount(t *testing.T) {
	store, svc, invoice, _ := movementFixture(t)
	closed := store.seedAccount(models.BankAccount{
		Name:     "Kas Lama",
		Balance:  money("0"),
		IsActive: false,
	})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: closed.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.InvoiceStatusUnpaid, store.invoice(invoice.ID).Status)
}

func TestRecordPayment_ValidatesInput(t *testing.T) {
	_, svc, invoice, account := movementFixture(t)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("0"),
		Method:        models.PaymentMethodManual,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        "CHEQUE",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecordPayment_UnknownInvoice(t *testing.T) {
	_, svc, _, account := movementFixture(t)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     uuid.New(),
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPayment_ConcurrentOnlyOneWins(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
				InvoiceID:     invoice.ID,
				BankAccountID: account.ID,
				Amount:        money("100000"),
				Method:        models.PaymentMethodBankTransfer,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, rejected)

	// Exactly one set of effects landed
	assert.True(t, store.account(account.ID).Balance.Equal(money("600000")))
	applied, err := store.Payments().CountAppliedByInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), applied)
}

func TestReversePayment_RestoresEverything(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReversePayment(context.Background(), payment.ID))

	assert.Equal(t, models.InvoiceStatusUnpaid, store.invoice(invoice.ID).Status)
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))

	_, err = store.CashFlows().FindByPaymentID(context.Background(), payment.ID)
	assert.Error(t, err, "linked ledger entry should be gone")

	// The payment row survives as history, no longer in force
	stored, err := store.Payments().FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.False(t, stored.Applied)
}

func TestReversePayment_PastDueLandsOnOverdue(t *testing.T) {
	store, svc, _, account := movementFixture(t)
	overdue := store.seedInvoice(models.Invoice{
		TotalAmount: money("50000"),
		Status:      models.InvoiceStatusOverdue,
		DueDate:     time.Now().Add(-24 * time.Hour),
	})

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     overdue.ID,
		BankAccountID: account.ID,
		Amount:        money("50000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReversePayment(context.Background(), payment.ID))
	assert.Equal(t, models.InvoiceStatusOverdue, store.invoice(overdue.ID).Status)
}

func TestReversePayment_TwiceFails(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)
	require.NoError(t, svc.ReversePayment(context.Background(), payment.ID))

	err = svc.ReversePayment(context.Background(), payment.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Second reversal must not subtract again
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))
	assert.Equal(t, models.InvoiceStatusUnpaid, store.invoice(invoice.ID).Status)
}

func TestReversePayment_InsufficientFunds(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)

	// The money has since left the account
	drained := store.account(account.ID)
	drained.Balance = money("40000")
	store.seedAccount(drained)

	err = svc.ReversePayment(context.Background(), payment.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing was partially undone
	assert.Equal(t, models.InvoiceStatusPaid, store.invoice(invoice.ID).Status)
	stored, err := store.Payments().FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, stored.Applied)
}

func TestDeletePayment_ReversesThenRemoves(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(context.Background(), payment.ID))

	assert.Equal(t, models.InvoiceStatusUnpaid, store.invoice(invoice.ID).Status)
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))
	_, err = store.Payments().FindByID(context.Background(), payment.ID)
	assert.Error(t, err)
}

func TestDeletePayment_AcceptsAlreadyReversed(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)
	require.NoError(t, svc.ReversePayment(context.Background(), payment.ID))

	require.NoError(t, svc.DeletePayment(context.Background(), payment.ID))
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))
}

func TestRecordManualCashFlow_AppliesSignedDelta(t *testing.T) {
	store, svc, _, account := movementFixture(t)

	income, err := svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeIncome,
		Category:      "Other Income",
		Amount:        money("25000"),
		Description:   "Scrap sale",
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)
	assert.False(t, income.IsSystemLinked())
	assert.True(t, store.account(account.ID).Balance.Equal(money("525000")))

	_, err = svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("125000"),
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)
	assert.True(t, store.account(account.ID).Balance.Equal(money("400000")))
}

func TestRecordManualCashFlow_ExpenseCannotOverdraw(t *testing.T) {
	store, svc, _, account := movementFixture(t)

	_, err := svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("500001"),
		BankAccountID: &account.ID,
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))
}

func TestReverseManualCashFlow_UndoesBalance(t *testing.T) {
	store, svc, _, account := movementFixture(t)

	entry, err := svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("50000"),
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.True(t, store.account(account.ID).Balance.Equal(money("450000")))

	require.NoError(t, svc.ReverseManualCashFlow(context.Background(), entry.ID))
	assert.True(t, store.account(account.ID).Balance.Equal(money("500000")))

	err = svc.ReverseManualCashFlow(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReverseManualCashFlow_RefusesPaymentLinkedEntry(t *testing.T) {
	store, svc, invoice, account := movementFixture(t)

	payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		BankAccountID: account.ID,
		Amount:        money("100000"),
		Method:        models.PaymentMethodManual,
	})
	require.NoError(t, err)

	entry, err := store.CashFlows().FindByPaymentID(context.Background(), payment.ID)
	require.NoError(t, err)

	err = svc.ReverseManualCashFlow(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrEntryLinkedToPayment)
	assert.True(t, store.account(account.ID).Balance.Equal(money("600000")))
}

func TestEditManualCashFlow_MovesBetweenAccounts(t *testing.T) {
	store, svc, _, accountA := movementFixture(t)
	accountB := store.seedAccount(models.BankAccount{
		Name:           "Kas Cabang",
		InitialBalance: money("200000"),
		Balance:        money("200000"),
		IsActive:       true,
	})

	old, err := svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("50000"),
		BankAccountID: &accountA.ID,
	})
	require.NoError(t, err)
	require.True(t, store.account(accountA.ID).Balance.Equal(money("450000")))

	edited, err := svc.EditManualCashFlow(context.Background(), old.ID, ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("70000"),
		BankAccountID: &accountB.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, edited.ID)

	// Old account restored in full, new account debited the new amount
	assert.True(t, store.account(accountA.ID).Balance.Equal(money("500000")))
	assert.True(t, store.account(accountB.ID).Balance.Equal(money("130000")))

	_, err = store.CashFlows().FindByID(context.Background(), old.ID)
	assert.Error(t, err)
}

func TestEditManualCashFlow_FailureLeavesOriginal(t *testing.T) {
	store, svc, _, account := movementFixture(t)

	old, err := svc.RecordManualCashFlow(context.Background(), ManualCashFlowInput{
		Type:          models.CashFlowTypeIncome,
		Category:      "Other Income",
		Amount:        money("30000"),
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)

	// New expense exceeds the balance once the income is undone
	_, err = svc.EditManualCashFlow(context.Background(), old.ID, ManualCashFlowInput{
		Type:          models.CashFlowTypeExpense,
		Category:      "Operational",
		Amount:        money("600000"),
		BankAccountID: &account.ID,
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The atomic unit rolled back: original entry and balance intact
	assert.True(t, store.account(account.ID).Balance.Equal(money("530000")))
	kept, err := store.CashFlows().FindByID(context.Background(), old.ID)
	require.NoError(t, err)
	assert.True(t, kept.Amount.Equal(money("30000")))
}
