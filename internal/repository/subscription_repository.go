package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasira/billing-api/internal/models"
)

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByIDWithProduct(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Create(ctx context.Context, subscription *models.Subscription) error
	Update(ctx context.Context, subscription *models.Subscription) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query *ListQuery) ([]models.Subscription, int64, error)
	FindActiveExpiredBefore(ctx context.Context, now time.Time) ([]models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).First(&subscription, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *subscriptionRepository) FindByIDWithProduct(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Client").
		First(&subscription, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *subscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *subscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error
}

func (r *subscriptionRepository) List(ctx context.Context, query *ListQuery) ([]models.Subscription, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Subscription{})

	if status := query.Filters["status"]; status != "" {
		db = db.Where("subscriptions.status = ?", status)
	}
	if clientID := query.Filters["client_id"]; clientID != "" {
		db = db.Where("subscriptions.client_id = ?", clientID)
	}
	if term := query.Filters["search_term"]; term != "" {
		like := "%" + term + "%"
		db = db.Joins("JOIN clients ON clients.id = subscriptions.client_id").
			Where("clients.name ILIKE ?", like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subscriptions []models.Subscription
	err := db.Preload("Client").
		Preload("Product").
		Order("subscriptions.created_at DESC").
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&subscriptions).Error
	return subscriptions, total, err
}

func (r *subscriptionRepository) FindActiveExpiredBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date < ?", models.SubscriptionStatusActive, now).
		Find(&subscriptions).Error
	return subscriptions, err
}
