package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/internal/statemachine"
	"github.com/kasira/billing-api/pkg/logger"
)

// MovementService is the money movement engine. Every public operation runs
// as one atomic unit: the invoice status change, the bank balance delta and
// the cash-flow ledger entry commit together or not at all. Serialization is
// per invoice and per bank account via row locks taken inside the unit, so
// two simultaneous recordings against one invoice cannot both succeed while
// unrelated invoices and accounts never block each other.
type MovementService struct {
	store repository.Store
}

// NewMovementService creates a new movement service
func NewMovementService(store repository.Store) *MovementService {
	return &MovementService{store: store}
}

// RecordPaymentInput carries the arguments for RecordPayment
type RecordPaymentInput struct {
	InvoiceID     uuid.UUID
	BankAccountID uuid.UUID
	Amount        decimal.Decimal
	Method        string
	Notes         *string
	PaymentDate   time.Time
}

// ManualCashFlowInput carries the arguments for manual ledger entries
type ManualCashFlowInput struct {
	Type            string
	Category        string
	Amount          decimal.Decimal
	Description     string
	EntryDate       time.Time
	BankAccountID   *uuid.UUID
	CreatedByUserID *uint
}

// RecordPayment records a payment against an unpaid (or overdue) invoice.
// In one atomic unit it inserts the payment, transitions the invoice to PAID,
// credits the bank account and appends a linked INCOME ledger entry. The
// payment row is inserted with applied=false and flipped to applied=true as
// the final write before commit, so an aborted attempt can never leave a
// payment that looks in force.
func (s *MovementService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !models.ValidPaymentMethod(in.Method) {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}

	var payment *models.Payment
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		invoice, err := st.Invoices().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return wrapLookup(err, "invoice")
		}

		applied, err := st.Payments().CountAppliedByInvoice(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("%w: count applied payments: %v", ErrStoreFailure, err)
		}
		if applied > 0 || !invoice.MayPay() {
			return fmt.Errorf("%w: invoice %s is already paid", ErrInvalidTransition, invoice.InvoiceNumber)
		}

		account, err := st.BankAccounts().FindByIDForUpdate(ctx, in.BankAccountID)
		if err != nil {
			return wrapLookup(err, "bank account")
		}
		if !account.IsActive {
			return fmt.Errorf("%w: bank account %s is inactive", ErrValidation, account.Name)
		}

		paymentDate := in.PaymentDate
		if paymentDate.IsZero() {
			paymentDate = time.Now()
		}

		payment = &models.Payment{
			ID:            uuid.New(),
			InvoiceID:     invoice.ID,
			BankAccountID: account.ID,
			Amount:        in.Amount,
			Method:        in.Method,
			PaymentDate:   paymentDate,
			Notes:         in.Notes,
			Applied:       false,
		}
		if err := st.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("%w: insert payment: %v", ErrStoreFailure, err)
		}

		if err := statemachine.NewInvoiceFSM(invoice).Pay(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		if err := st.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("%w: update invoice status: %v", ErrStoreFailure, err)
		}

		account.Balance = account.Balance.Add(in.Amount)
		if err := st.BankAccounts().Update(ctx, account); err != nil {
			return fmt.Errorf("%w: credit bank account: %v", ErrStoreFailure, err)
		}

		entry := &models.CashFlowEntry{
			Type:          models.CashFlowTypeIncome,
			Category:      models.CategoryPaymentReceived,
			Amount:        in.Amount,
			Description:   fmt.Sprintf("Payment for invoice %s", invoice.InvoiceNumber),
			EntryDate:     paymentDate,
			BankAccountID: &account.ID,
			PaymentID:     &payment.ID,
		}
		if err := st.CashFlows().Create(ctx, entry); err != nil {
			return fmt.Errorf("%w: append cash flow entry: %v", ErrStoreFailure, err)
		}

		// Last write: the applied flag only flips once every sub-effect is in.
		payment.Applied = true
		if err := st.Payments().Update(ctx, payment); err != nil {
			return fmt.Errorf("%w: mark payment applied: %v", ErrStoreFailure, err)
		}

		return nil
	})
	if err != nil {
		return nil, translateTxErr(err)
	}

	logger.Info("payment recorded",
		"payment_id", payment.ID,
		"invoice_id", in.InvoiceID,
		"amount", in.Amount.String())
	return payment, nil
}

// ReversePayment undoes every effect of an applied payment: debits the bank
// account, removes the linked cash-flow entry and re-derives the invoice
// status (UNPAID, or OVERDUE when past due). The payment row stays, marked
// applied=false. Reversing an already-reversed payment returns
// ErrInvalidTransition and changes nothing.
func (s *MovementService) ReversePayment(ctx context.Context, paymentID uuid.UUID) error {
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		payment, err := st.Payments().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return wrapLookup(err, "payment")
		}
		return s.reverseLocked(ctx, st, payment)
	})
	if err != nil {
		return translateTxErr(err)
	}

	logger.Info("payment reversed", "payment_id", paymentID)
	return nil
}

// DeletePayment reverses the payment if its effects are still in force, then
// hard-deletes the row, all in one atomic unit. Unlike ReversePayment it
// accepts an already-reversed payment: the row is simply removed.
func (s *MovementService) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		payment, err := st.Payments().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return wrapLookup(err, "payment")
		}

		if payment.Applied {
			if err := s.reverseLocked(ctx, st, payment); err != nil {
				return err
			}
		}

		if err := st.Payments().Delete(ctx, payment.ID); err != nil {
			return fmt.Errorf("%w: delete payment: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return translateTxErr(err)
	}

	logger.Info("payment deleted", "payment_id", paymentID)
	return nil
}

// reverseLocked undoes the three sub-effects of a payment already loaded
// under its row lock. Lock order matches RecordPayment (invoice, account)
// so record and reverse on the same invoice cannot deadlock.
func (s *MovementService) reverseLocked(ctx context.Context, st repository.Store, payment *models.Payment) error {
	if !payment.MayReverse() {
		return fmt.Errorf("%w: payment %s is not applied", ErrInvalidTransition, payment.ID)
	}

	invoice, err := st.Invoices().FindByIDForUpdate(ctx, payment.InvoiceID)
	if err != nil {
		return wrapLookup(err, "invoice")
	}

	account, err := st.BankAccounts().FindByIDForUpdate(ctx, payment.BankAccountID)
	if err != nil {
		return wrapLookup(err, "bank account")
	}
	if !account.CanDebit(payment.Amount) {
		return fmt.Errorf("%w: reversing %s from account %s", ErrInsufficientFunds,
			payment.Amount.String(), account.Name)
	}
	account.Balance = account.Balance.Sub(payment.Amount)
	if err := st.BankAccounts().Update(ctx, account); err != nil {
		return fmt.Errorf("%w: debit bank account: %v", ErrStoreFailure, err)
	}

	if _, err := st.CashFlows().DeleteByPaymentID(ctx, payment.ID); err != nil {
		return fmt.Errorf("%w: remove cash flow entry: %v", ErrStoreFailure, err)
	}

	// This payment is the only one that can be applied under the
	// single-payment model, but count anyway so a historical double-applied
	// row never flips the invoice back while another payment holds it.
	applied, err := st.Payments().CountAppliedByInvoice(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("%w: count applied payments: %v", ErrStoreFailure, err)
	}
	if applied <= 1 {
		if err := statemachine.NewInvoiceFSM(invoice).Reverse(ctx, time.Now()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		if err := st.Invoices().Update(ctx, invoice); err != nil {
			return fmt.Errorf("%w: update invoice status: %v", ErrStoreFailure, err)
		}
	}

	payment.Applied = false
	if err := st.Payments().Update(ctx, payment); err != nil {
		return fmt.Errorf("%w: mark payment reversed: %v", ErrStoreFailure, err)
	}
	return nil
}

// GetPayment returns one payment by id
func (s *MovementService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.store.Payments().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "payment")
	}
	return payment, nil
}

// ListPayments returns a page of payments
func (s *MovementService) ListPayments(ctx context.Context, query *repository.ListQuery) ([]models.Payment, int64, error) {
	payments, total, err := s.store.Payments().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list payments: %v", ErrStoreFailure, err)
	}
	return payments, total, nil
}

// RecordManualCashFlow appends a manual ledger entry and, when a bank account
// is attached, applies the signed delta to its balance in the same atomic
// unit.
func (s *MovementService) RecordManualCashFlow(ctx context.Context, in ManualCashFlowInput) (*models.CashFlowEntry, error) {
	if err := validateManualInput(in); err != nil {
		return nil, err
	}

	var entry *models.CashFlowEntry
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		var err error
		entry, err = s.appendManualLocked(ctx, st, in)
		return err
	})
	if err != nil {
		return nil, translateTxErr(err)
	}

	logger.Info("cash flow entry recorded",
		"entry_id", entry.ID,
		"type", entry.Type,
		"amount", entry.Amount.String())
	return entry, nil
}

// ReverseManualCashFlow removes a manual ledger entry and undoes its balance
// effect. Entries generated by a payment are refused: reversing them here
// would leave the invoice and payment claiming money the ledger no longer
// shows, so those must go through ReversePayment.
func (s *MovementService) ReverseManualCashFlow(ctx context.Context, entryID uint) error {
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		entry, err := st.CashFlows().FindByID(ctx, entryID)
		if err != nil {
			return wrapLookup(err, "cash flow entry")
		}
		return s.removeManualLocked(ctx, st, entry)
	})
	if err != nil {
		return translateTxErr(err)
	}

	logger.Info("cash flow entry reversed", "entry_id", entryID)
	return nil
}

// EditManualCashFlow replaces a manual entry with new fields. It is reversal
// followed by re-append inside one atomic unit, never a field overwrite: the
// old entry's balance effect is undone on its account and the new entry's
// effect applied on its (possibly different) account, exactly once each.
func (s *MovementService) EditManualCashFlow(ctx context.Context, entryID uint, in ManualCashFlowInput) (*models.CashFlowEntry, error) {
	if err := validateManualInput(in); err != nil {
		return nil, err
	}

	var entry *models.CashFlowEntry
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		old, err := st.CashFlows().FindByID(ctx, entryID)
		if err != nil {
			return wrapLookup(err, "cash flow entry")
		}

		// Pre-lock both accounts in a stable order so two edits moving
		// entries between the same pair of accounts cannot deadlock.
		for _, id := range sortedAccountIDs(old.BankAccountID, in.BankAccountID) {
			if _, err := st.BankAccounts().FindByIDForUpdate(ctx, id); err != nil {
				return wrapLookup(err, "bank account")
			}
		}

		if err := s.removeManualLocked(ctx, st, old); err != nil {
			return err
		}

		if in.CreatedByUserID == nil {
			in.CreatedByUserID = old.CreatedByUserID
		}
		entry, err = s.appendManualLocked(ctx, st, in)
		return err
	})
	if err != nil {
		return nil, translateTxErr(err)
	}

	logger.Info("cash flow entry edited", "old_entry_id", entryID, "new_entry_id", entry.ID)
	return entry, nil
}

func (s *MovementService) appendManualLocked(ctx context.Context, st repository.Store, in ManualCashFlowInput) (*models.CashFlowEntry, error) {
	entry := &models.CashFlowEntry{
		Type:            in.Type,
		Category:        in.Category,
		Amount:          in.Amount,
		Description:     in.Description,
		EntryDate:       in.EntryDate,
		BankAccountID:   in.BankAccountID,
		CreatedByUserID: in.CreatedByUserID,
	}
	if entry.EntryDate.IsZero() {
		entry.EntryDate = time.Now()
	}

	if in.BankAccountID != nil {
		account, err := st.BankAccounts().FindByIDForUpdate(ctx, *in.BankAccountID)
		if err != nil {
			return nil, wrapLookup(err, "bank account")
		}
		if !account.IsActive {
			return nil, fmt.Errorf("%w: bank account %s is inactive", ErrValidation, account.Name)
		}

		balance := account.Balance.Add(entry.SignedAmount())
		if balance.IsNegative() {
			return nil, fmt.Errorf("%w: expense of %s exceeds balance of account %s",
				ErrInsufficientFunds, in.Amount.String(), account.Name)
		}
		account.Balance = balance
		if err := st.BankAccounts().Update(ctx, account); err != nil {
			return nil, fmt.Errorf("%w: apply balance delta: %v", ErrStoreFailure, err)
		}
	}

	if err := st.CashFlows().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: append cash flow entry: %v", ErrStoreFailure, err)
	}
	return entry, nil
}

func (s *MovementService) removeManualLocked(ctx context.Context, st repository.Store, entry *models.CashFlowEntry) error {
	if entry.IsSystemLinked() {
		return fmt.Errorf("%w: entry %d belongs to payment %s", ErrEntryLinkedToPayment,
			entry.ID, entry.PaymentID)
	}

	var account *models.BankAccount
	if entry.BankAccountID != nil {
		var err error
		account, err = st.BankAccounts().FindByIDForUpdate(ctx, *entry.BankAccountID)
		if err != nil {
			return wrapLookup(err, "bank account")
		}
	}

	// Delete before touching the balance: the affected-row count is the
	// guard that makes a concurrent double reversal subtract only once.
	rows, err := st.CashFlows().Delete(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("%w: delete cash flow entry: %v", ErrStoreFailure, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: cash flow entry %d", ErrNotFound, entry.ID)
	}

	if account != nil {
		balance := account.Balance.Sub(entry.SignedAmount())
		if balance.IsNegative() {
			return fmt.Errorf("%w: undoing entry %d on account %s",
				ErrInsufficientFunds, entry.ID, account.Name)
		}
		account.Balance = balance
		if err := st.BankAccounts().Update(ctx, account); err != nil {
			return fmt.Errorf("%w: undo balance delta: %v", ErrStoreFailure, err)
		}
	}
	return nil
}

func validateManualInput(in ManualCashFlowInput) error {
	if !models.ValidCashFlowType(in.Type) {
		return fmt.Errorf("%w: unknown cash flow type %q", ErrValidation, in.Type)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	return nil
}

// wrapLookup maps a repository read error onto the service taxonomy
func wrapLookup(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: load %s: %v", ErrStoreFailure, what, err)
}

// translateTxErr maps low-level transaction failures onto the taxonomy.
// Postgres serialization failures and deadlocks (SQLSTATE 40001, 40P01) are
// surfaced as ErrConflict, which callers may retry; taxonomy errors pass
// through untouched.
func translateTxErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrEntryLinkedToPayment),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrStoreFailure):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

// sortedAccountIDs returns the distinct non-nil ids in a stable order.
// Operations that touch two accounts lock them in this order so concurrent
// edits cannot deadlock against each other.
func sortedAccountIDs(ids ...*uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
