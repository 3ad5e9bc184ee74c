package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasira/billing-api/internal/models"
)

func subscriptionFixture(t *testing.T) (*memStore, *SubscriptionService, models.Subscription) {
	t.Helper()
	store := newMemStore()
	client := store.seedClient(models.Client{Name: "PT Maju", Email: "billing@maju.co.id"})
	product := models.Product{ID: uuid.New(), Name: "Fiber 100Mbps", Price: money("350000"), IsActive: true}
	require.NoError(t, store.Products().Create(context.Background(), &product))

	sub := models.Subscription{
		ID:         uuid.New(),
		ClientID:   client.ID,
		ProductID:  product.ID,
		StartDate:  time.Now().Add(-30 * 24 * time.Hour),
		ExpiryDate: time.Now().Add(30 * 24 * time.Hour),
		Status:     models.SubscriptionStatusActive,
	}
	require.NoError(t, store.Subscriptions().Create(context.Background(), &sub))
	return store, NewSubscriptionService(store), sub
}

func TestCancelSubscription(t *testing.T) {
	_, svc, sub := subscriptionFixture(t)

	cancelled, err := svc.CancelSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, cancelled.Status)

	_, err = svc.CancelSubscription(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRenewSubscription(t *testing.T) {
	_, svc, sub := subscriptionFixture(t)

	// New expiry must extend the current one
	_, err := svc.RenewSubscription(context.Background(), sub.ID, sub.ExpiryDate.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrValidation)

	renewed, err := svc.RenewSubscription(context.Background(), sub.ID, sub.ExpiryDate.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, renewed.Status)

	_, err = svc.CancelSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	_, err = svc.RenewSubscription(context.Background(), sub.ID, renewed.ExpiryDate.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExpireSubscriptions(t *testing.T) {
	store, svc, active := subscriptionFixture(t)

	lapsed := models.Subscription{
		ID:         uuid.New(),
		ClientID:   active.ClientID,
		ProductID:  active.ProductID,
		StartDate:  time.Now().Add(-90 * 24 * time.Hour),
		ExpiryDate: time.Now().Add(-24 * time.Hour),
		Status:     models.SubscriptionStatusActive,
	}
	require.NoError(t, store.Subscriptions().Create(context.Background(), &lapsed))

	flipped, err := svc.ExpireSubscriptions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	got, err := store.Subscriptions().FindByID(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, got.Status)

	still, err := store.Subscriptions().FindByID(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, still.Status)
}
