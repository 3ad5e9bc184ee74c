package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// SubscriptionService manages client subscriptions
type SubscriptionService struct {
	store repository.Store
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(store repository.Store) *SubscriptionService {
	return &SubscriptionService{store: store}
}

// SubscriptionInput carries the arguments for CreateSubscription
type SubscriptionInput struct {
	ClientID       uuid.UUID
	ProductID      uuid.UUID
	StartDate      time.Time
	ExpiryDate     time.Time
	PackageDetails *string
}

// CreateSubscription signs a client up for a product
func (s *SubscriptionService) CreateSubscription(ctx context.Context, in SubscriptionInput) (*models.Subscription, error) {
	if in.ExpiryDate.Before(in.StartDate) {
		return nil, fmt.Errorf("%w: expiry date precedes start date", ErrValidation)
	}
	if _, err := s.store.Clients().FindByID(ctx, in.ClientID); err != nil {
		return nil, wrapLookup(err, "client")
	}
	product, err := s.store.Products().FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, wrapLookup(err, "product")
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product %s is inactive", ErrValidation, product.Name)
	}

	subscription := &models.Subscription{
		ID:             uuid.New(),
		ClientID:       in.ClientID,
		ProductID:      in.ProductID,
		StartDate:      in.StartDate,
		ExpiryDate:     in.ExpiryDate,
		Status:         models.SubscriptionStatusActive,
		PackageDetails: in.PackageDetails,
	}
	if err := s.store.Subscriptions().Create(ctx, subscription); err != nil {
		return nil, fmt.Errorf("%w: insert subscription: %v", ErrStoreFailure, err)
	}

	logger.Info("subscription created", "subscription_id", subscription.ID, "client_id", in.ClientID)
	return subscription, nil
}

// GetSubscription returns one subscription with its product loaded
func (s *SubscriptionService) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.store.Subscriptions().FindByIDWithProduct(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "subscription")
	}
	return subscription, nil
}

// ListSubscriptions returns a page of subscriptions
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, query *repository.ListQuery) ([]models.Subscription, int64, error) {
	subscriptions, total, err := s.store.Subscriptions().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list subscriptions: %v", ErrStoreFailure, err)
	}
	return subscriptions, total, nil
}

// CancelSubscription moves an active subscription to CANCELLED
func (s *SubscriptionService) CancelSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.store.Subscriptions().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "subscription")
	}
	if subscription.Status != models.SubscriptionStatusActive {
		return nil, fmt.Errorf("%w: subscription is %s", ErrInvalidTransition, subscription.Status)
	}

	subscription.Status = models.SubscriptionStatusCancelled
	if err := s.store.Subscriptions().Update(ctx, subscription); err != nil {
		return nil, fmt.Errorf("%w: update subscription: %v", ErrStoreFailure, err)
	}

	logger.Info("subscription cancelled", "subscription_id", id)
	return subscription, nil
}

// RenewSubscription extends an active or expired subscription to a new
// expiry date and reactivates it
func (s *SubscriptionService) RenewSubscription(ctx context.Context, id uuid.UUID, expiryDate time.Time) (*models.Subscription, error) {
	subscription, err := s.store.Subscriptions().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "subscription")
	}
	if subscription.Status == models.SubscriptionStatusCancelled {
		return nil, fmt.Errorf("%w: cancelled subscriptions cannot be renewed", ErrInvalidTransition)
	}
	if !expiryDate.After(subscription.ExpiryDate) {
		return nil, fmt.Errorf("%w: new expiry must extend the current one", ErrValidation)
	}

	subscription.ExpiryDate = expiryDate
	subscription.Status = models.SubscriptionStatusActive
	if err := s.store.Subscriptions().Update(ctx, subscription); err != nil {
		return nil, fmt.Errorf("%w: update subscription: %v", ErrStoreFailure, err)
	}

	logger.Info("subscription renewed", "subscription_id", id, "expiry_date", expiryDate)
	return subscription, nil
}

// ExpireSubscriptions flips ACTIVE subscriptions past their expiry date to
// EXPIRED and returns how many it flipped. Run on a schedule.
func (s *SubscriptionService) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	subscriptions, err := s.store.Subscriptions().FindActiveExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: find expired subscriptions: %v", ErrStoreFailure, err)
	}

	flipped := 0
	for i := range subscriptions {
		sub := &subscriptions[i]
		sub.Status = models.SubscriptionStatusExpired
		if err := s.store.Subscriptions().Update(ctx, sub); err != nil {
			logger.Error("expiry sweep failed for subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		flipped++
	}

	if flipped > 0 {
		logger.Info("subscription expiry sweep complete", "flipped", flipped)
	}
	return flipped, nil
}
