package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/kasira/billing-api/internal/models"
)

// InvoiceFSM wraps an invoice with its lifecycle state machine.
//
// Transitions:
//
//	UNPAID  → PAID    (payment applied)
//	OVERDUE → PAID    (payment applied)
//	PAID    → UNPAID  (payment reversed, no other applied payment remains)
//	UNPAID  → OVERDUE (due date passed)
//
// There is no PAID → OVERDUE edge: a paid invoice never becomes overdue,
// regardless of its due date.
type InvoiceFSM struct {
	invoice *models.Invoice
	fsm     *fsm.FSM
}

// NewInvoiceFSM creates a new invoice state machine
func NewInvoiceFSM(invoice *models.Invoice) *InvoiceFSM {
	ifsm := &InvoiceFSM{
		invoice: invoice,
	}

	ifsm.fsm = fsm.NewFSM(
		invoice.Status,
		fsm.Events{
			// unpaid/overdue → paid
			{Name: "pay", Src: []string{models.InvoiceStatusUnpaid, models.InvoiceStatusOverdue}, Dst: models.InvoiceStatusPaid},

			// paid → unpaid (payment reversal)
			{Name: "reverse", Src: []string{models.InvoiceStatusPaid}, Dst: models.InvoiceStatusUnpaid},

			// unpaid → overdue (time-driven)
			{Name: "expire", Src: []string{models.InvoiceStatusUnpaid}, Dst: models.InvoiceStatusOverdue},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Pay transitions the invoice to paid
func (i *InvoiceFSM) Pay(ctx context.Context) error {
	if !i.invoice.MayPay() {
		return fmt.Errorf("invoice cannot be paid in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "pay"); err != nil {
		return fmt.Errorf("failed to pay invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Reverse transitions the invoice from paid back to unpaid. If the due date
// has already passed, the invoice is immediately expired to overdue so the
// stored status matches what a fresh unpaid invoice would carry.
func (i *InvoiceFSM) Reverse(ctx context.Context, now time.Time) error {
	if err := i.fsm.Event(ctx, "reverse"); err != nil {
		return fmt.Errorf("failed to reverse invoice: %w", err)
	}

	if i.invoice.IsPastDue(now) {
		if err := i.fsm.Event(ctx, "expire"); err != nil {
			return fmt.Errorf("failed to expire invoice after reversal: %w", err)
		}
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Expire transitions an unpaid invoice past its due date to overdue
func (i *InvoiceFSM) Expire(ctx context.Context, now time.Time) error {
	if !i.invoice.IsPastDue(now) {
		return fmt.Errorf("invoice is not past due (due %s)", i.invoice.DueDate.Format("2006-01-02"))
	}

	if err := i.fsm.Event(ctx, "expire"); err != nil {
		return fmt.Errorf("failed to expire invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InvoiceFSM) Current() string {
	return i.fsm.Current()
}

// Can checks if a transition is possible
func (i *InvoiceFSM) Can(event string) bool {
	return i.fsm.Can(event)
}
