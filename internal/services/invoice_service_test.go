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

func TestCreateInvoice_AllocatesNumberAndStatus(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	client := store.seedClient(models.Client{Name: "PT Maju", Email: "billing@maju.co.id"})

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID:    client.ID,
		TotalAmount: money("150000"),
		DueDate:     time.Now().Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, invoice.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusUnpaid, invoice.Status)

	// An invoice issued already past its due date starts OVERDUE
	late, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID:    client.ID,
		TotalAmount: money("150000"),
		DueDate:     time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOverdue, late.Status)
	assert.NotEqual(t, invoice.InvoiceNumber, late.InvoiceNumber)
}

func TestCreateInvoice_DefaultsAmountFromSubscription(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	client := store.seedClient(models.Client{Name: "PT Maju", Email: "billing@maju.co.id"})
	product := models.Product{ID: uuid.New(), Name: "Fiber 100Mbps", Price: money("350000"), IsActive: true}
	require.NoError(t, store.Products().Create(context.Background(), &product))
	sub := models.Subscription{
		ID:        uuid.New(),
		ClientID:  client.ID,
		ProductID: product.ID,
		Status:    models.SubscriptionStatusActive,
	}
	require.NoError(t, store.Subscriptions().Create(context.Background(), &sub))

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID:       client.ID,
		SubscriptionID: &sub.ID,
		DueDate:        time.Now().Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, invoice.TotalAmount.Equal(money("350000")))
}

func TestCreateInvoice_RejectsForeignSubscription(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	client := store.seedClient(models.Client{Name: "PT Maju", Email: "billing@maju.co.id"})
	other := store.seedClient(models.Client{Name: "PT Lain", Email: "billing@lain.co.id"})
	sub := models.Subscription{
		ID:       uuid.New(),
		ClientID: other.ID,
		Status:   models.SubscriptionStatusActive,
	}
	require.NoError(t, store.Subscriptions().Create(context.Background(), &sub))

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID:       client.ID,
		SubscriptionID: &sub.ID,
		TotalAmount:    money("100000"),
		DueDate:        time.Now().Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateInvoice_PaidAmountIsFrozen(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	paid := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusPaid,
		DueDate:     time.Now().Add(24 * time.Hour),
	})

	amount := money("200000")
	_, err := svc.UpdateInvoice(context.Background(), paid.ID, UpdateInvoiceInput{TotalAmount: &amount})
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, store.invoice(paid.ID).TotalAmount.Equal(money("100000")))
}

func TestUpdateInvoice_DueDateRederivesStatus(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	overdue := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusOverdue,
		DueDate:     time.Now().Add(-24 * time.Hour),
	})

	// Pushing the due date into the future lifts the overdue state
	future := time.Now().Add(7 * 24 * time.Hour)
	updated, err := svc.UpdateInvoice(context.Background(), overdue.ID, UpdateInvoiceInput{DueDate: &future})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusUnpaid, updated.Status)
}

func TestDeleteInvoice_RefusesPaymentHistory(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	invoice := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusUnpaid,
		DueDate:     time.Now().Add(24 * time.Hour),
	})

	// Even a reversed payment pins the invoice
	reversed := models.Payment{
		ID:        uuid.New(),
		InvoiceID: invoice.ID,
		Amount:    money("100000"),
		Method:    models.PaymentMethodManual,
		Applied:   false,
	}
	require.NoError(t, store.Payments().Create(context.Background(), &reversed))

	err := svc.DeleteInvoice(context.Background(), invoice.ID)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, store.Payments().Delete(context.Background(), reversed.ID))
	require.NoError(t, svc.DeleteInvoice(context.Background(), invoice.ID))
}

func TestMarkOverdueInvoices_FlipsOnlyPastDueUnpaid(t *testing.T) {
	store := newMemStore()
	svc := NewInvoiceService(store)
	now := time.Now()

	pastDue := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusUnpaid,
		DueDate:     now.Add(-24 * time.Hour),
	})
	current := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusUnpaid,
		DueDate:     now.Add(24 * time.Hour),
	})
	paid := store.seedInvoice(models.Invoice{
		TotalAmount: money("100000"),
		Status:      models.InvoiceStatusPaid,
		DueDate:     now.Add(-24 * time.Hour),
	})

	flipped, err := svc.MarkOverdueInvoices(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	assert.Equal(t, models.InvoiceStatusOverdue, store.invoice(pastDue.ID).Status)
	assert.Equal(t, models.InvoiceStatusUnpaid, store.invoice(current.ID).Status)
	assert.Equal(t, models.InvoiceStatusPaid, store.invoice(paid.ID).Status)
}
