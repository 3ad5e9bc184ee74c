package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasira/billing-api/internal/models"
)

// BankAccountRepository defines the interface for bank account data access
type BankAccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	// FindByIDForUpdate loads the account under a row lock so balance
	// mutations on one account serialize without blocking other accounts.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	FindAll(ctx context.Context) ([]models.BankAccount, error)
	Create(ctx context.Context, account *models.BankAccount) error
	Update(ctx context.Context, account *models.BankAccount) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query *ListQuery) ([]models.BankAccount, int64, error)
}

type bankAccountRepository struct {
	db *gorm.DB
}

// NewBankAccountRepository creates a new bank account repository
func NewBankAccountRepository(db *gorm.DB) BankAccountRepository {
	return &bankAccountRepository{db: db}
}

func (r *bankAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *bankAccountRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *bankAccountRepository) FindAll(ctx context.Context) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).Order("name ASC").Find(&accounts).Error
	return accounts, err
}

func (r *bankAccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *bankAccountRepository) Update(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *bankAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.BankAccount{}, "id = ?", id).Error
}

func (r *bankAccountRepository) List(ctx context.Context, query *ListQuery) ([]models.BankAccount, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.BankAccount{})

	if active := query.Filters["is_active"]; active != "" {
		db = db.Where("is_active = ?", active == "true")
	}
	if term := query.Filters["search_term"]; term != "" {
		like := "%" + term + "%"
		db = db.Where("name ILIKE ? OR bank_name ILIKE ? OR account_number ILIKE ?", like, like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var accounts []models.BankAccount
	err := db.Order("name ASC").
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&accounts).Error
	return accounts, total, err
}
