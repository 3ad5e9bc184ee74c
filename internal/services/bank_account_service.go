package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// BankAccountService manages cash and bank accounts. The only balance write
// it performs itself is Adjust, which goes through the ledger so the
// balance-equals-initial-plus-entries invariant survives the correction.
type BankAccountService struct {
	store repository.Store
}

// NewBankAccountService creates a new bank account service
func NewBankAccountService(store repository.Store) *BankAccountService {
	return &BankAccountService{store: store}
}

// CreateBankAccountInput carries the arguments for CreateBankAccount
type CreateBankAccountInput struct {
	Name           string
	BankName       string
	AccountNumber  string
	InitialBalance decimal.Decimal
}

// UpdateBankAccountInput carries the editable account fields
type UpdateBankAccountInput struct {
	Name          *string
	BankName      *string
	AccountNumber *string
	IsActive      *bool
}

// CreateBankAccount opens a new account. The running balance starts equal to
// the initial balance.
func (s *BankAccountService) CreateBankAccount(ctx context.Context, in CreateBankAccountInput) (*models.BankAccount, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance cannot be negative", ErrValidation)
	}

	account := &models.BankAccount{
		ID:             uuid.New(),
		Name:           in.Name,
		BankName:       in.BankName,
		AccountNumber:  in.AccountNumber,
		InitialBalance: in.InitialBalance,
		Balance:        in.InitialBalance,
		IsActive:       true,
	}
	if err := s.store.BankAccounts().Create(ctx, account); err != nil {
		return nil, fmt.Errorf("%w: insert bank account: %v", ErrStoreFailure, err)
	}

	logger.Info("bank account created", "account_id", account.ID, "name", account.Name)
	return account, nil
}

// GetBankAccount returns one account by id
func (s *BankAccountService) GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	account, err := s.store.BankAccounts().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "bank account")
	}
	return account, nil
}

// ListBankAccounts returns a page of accounts
func (s *BankAccountService) ListBankAccounts(ctx context.Context, query *repository.ListQuery) ([]models.BankAccount, int64, error) {
	accounts, total, err := s.store.BankAccounts().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list bank accounts: %v", ErrStoreFailure, err)
	}
	return accounts, total, nil
}

// UpdateBankAccount edits descriptive fields. Balances are never edited
// here; use Adjust.
func (s *BankAccountService) UpdateBankAccount(ctx context.Context, id uuid.UUID, in UpdateBankAccountInput) (*models.BankAccount, error) {
	var account *models.BankAccount
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		var err error
		account, err = st.BankAccounts().FindByIDForUpdate(ctx, id)
		if err != nil {
			return wrapLookup(err, "bank account")
		}

		if in.Name != nil {
			account.Name = *in.Name
		}
		if in.BankName != nil {
			account.BankName = *in.BankName
		}
		if in.AccountNumber != nil {
			account.AccountNumber = *in.AccountNumber
		}
		if in.IsActive != nil {
			account.IsActive = *in.IsActive
		}

		if err := st.BankAccounts().Update(ctx, account); err != nil {
			return fmt.Errorf("%w: update bank account: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxErr(err)
	}
	return account, nil
}

// DeleteBankAccount removes an account that has no ledger entries. Accounts
// with history are deactivated instead of deleted so past entries keep their
// reference.
func (s *BankAccountService) DeleteBankAccount(ctx context.Context, id uuid.UUID) error {
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		account, err := st.BankAccounts().FindByIDForUpdate(ctx, id)
		if err != nil {
			return wrapLookup(err, "bank account")
		}

		entries, err := st.CashFlows().FindByAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("%w: list account entries: %v", ErrStoreFailure, err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: account %s has ledger history", ErrValidation, account.Name)
		}

		if err := st.BankAccounts().Delete(ctx, account.ID); err != nil {
			return fmt.Errorf("%w: delete bank account: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return translateTxErr(err)
	}

	logger.Info("bank account deleted", "account_id", id)
	return nil
}

// Adjust corrects an account balance by delta through a Balance Adjustment
// ledger entry. Positive delta becomes an INCOME entry, negative an EXPENSE.
// Unlike engine movements a correction may take the balance negative.
func (s *BankAccountService) Adjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, reason string, userID *uint) (*models.CashFlowEntry, error) {
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: adjustment delta cannot be zero", ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", ErrValidation)
	}

	entryType := models.CashFlowTypeIncome
	amount := delta
	if delta.IsNegative() {
		entryType = models.CashFlowTypeExpense
		amount = delta.Neg()
	}

	var entry *models.CashFlowEntry
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		account, err := st.BankAccounts().FindByIDForUpdate(ctx, id)
		if err != nil {
			return wrapLookup(err, "bank account")
		}

		entry = &models.CashFlowEntry{
			Type:            entryType,
			Category:        models.CategoryBalanceAdjustment,
			Amount:          amount,
			Description:     reason,
			EntryDate:       time.Now(),
			BankAccountID:   &account.ID,
			CreatedByUserID: userID,
		}
		if err := st.CashFlows().Create(ctx, entry); err != nil {
			return fmt.Errorf("%w: append adjustment entry: %v", ErrStoreFailure, err)
		}

		account.Balance = account.Balance.Add(delta)
		if err := st.BankAccounts().Update(ctx, account); err != nil {
			return fmt.Errorf("%w: apply adjustment: %v", ErrStoreFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, translateTxErr(err)
	}

	logger.Info("bank account adjusted", "account_id", id, "delta", delta.String())
	return entry, nil
}
