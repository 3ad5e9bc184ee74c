package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
)

// memStore is an in-memory repository.Store. Atomic serializes transactions
// behind one mutex and restores a snapshot on error, which models the
// database semantics the services rely on: row locks (coarsened to one big
// lock), rollback on failure, and reads returning committed state.
type memStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users         map[uint]*models.User
	refreshTokens map[string]*models.RefreshToken
	clients       map[uuid.UUID]*models.Client
	products      map[uuid.UUID]*models.Product
	subscriptions map[uuid.UUID]*models.Subscription
	invoices      map[uuid.UUID]*models.Invoice
	payments      map[uuid.UUID]*models.Payment
	accounts      map[uuid.UUID]*models.BankAccount
	entries       map[uint]*models.CashFlowEntry

	nextUserID  uint
	nextEntryID uint
	invoiceSeq  int
}

func newMemStore() *memStore {
	return &memStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:         make(map[uint]*models.User),
			refreshTokens: make(map[string]*models.RefreshToken),
			clients:       make(map[uuid.UUID]*models.Client),
			products:      make(map[uuid.UUID]*models.Product),
			subscriptions: make(map[uuid.UUID]*models.Subscription),
			invoices:      make(map[uuid.UUID]*models.Invoice),
			payments:      make(map[uuid.UUID]*models.Payment),
			accounts:      make(map[uuid.UUID]*models.BankAccount),
			entries:       make(map[uint]*models.CashFlowEntry),
		},
	}
}

func (d *memData) clone() *memData {
	out := &memData{
		users:         make(map[uint]*models.User, len(d.users)),
		refreshTokens: make(map[string]*models.RefreshToken, len(d.refreshTokens)),
		clients:       make(map[uuid.UUID]*models.Client, len(d.clients)),
		products:      make(map[uuid.UUID]*models.Product, len(d.products)),
		subscriptions: make(map[uuid.UUID]*models.Subscription, len(d.subscriptions)),
		invoices:      make(map[uuid.UUID]*models.Invoice, len(d.invoices)),
		payments:      make(map[uuid.UUID]*models.Payment, len(d.payments)),
		accounts:      make(map[uuid.UUID]*models.BankAccount, len(d.accounts)),
		entries:       make(map[uint]*models.CashFlowEntry, len(d.entries)),
		nextUserID:    d.nextUserID,
		nextEntryID:   d.nextEntryID,
		invoiceSeq:    d.invoiceSeq,
	}
	for k, v := range d.users {
		c := *v
		out.users[k] = &c
	}
	for k, v := range d.refreshTokens {
		c := *v
		out.refreshTokens[k] = &c
	}
	for k, v := range d.clients {
		c := *v
		out.clients[k] = &c
	}
	for k, v := range d.products {
		c := *v
		out.products[k] = &c
	}
	for k, v := range d.subscriptions {
		c := *v
		out.subscriptions[k] = &c
	}
	for k, v := range d.invoices {
		c := *v
		out.invoices[k] = &c
	}
	for k, v := range d.payments {
		c := *v
		out.payments[k] = &c
	}
	for k, v := range d.accounts {
		c := *v
		out.accounts[k] = &c
	}
	for k, v := range d.entries {
		c := *v
		out.entries[k] = &c
	}
	return out
}

func (s *memStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(&memStore{mu: s.mu, data: s.data, inTx: true})
	if err != nil {
		*s.data = *snapshot
	}
	return err
}

// lock serializes single reads and writes issued outside a transaction
func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) Users() repository.UserRepository                 { return memUsers{s} }
func (s *memStore) RefreshTokens() repository.RefreshTokenRepository { return memTokens{s} }
func (s *memStore) Clients() repository.ClientRepository             { return memClients{s} }
func (s *memStore) Products() repository.ProductRepository           { return memProducts{s} }
func (s *memStore) Subscriptions() repository.SubscriptionRepository { return memSubscriptions{s} }
func (s *memStore) Invoices() repository.InvoiceRepository           { return memInvoices{s} }
func (s *memStore) Payments() repository.PaymentRepository           { return memPayments{s} }
func (s *memStore) BankAccounts() repository.BankAccountRepository   { return memAccounts{s} }
func (s *memStore) CashFlows() repository.CashFlowRepository         { return memCashFlows{s} }

// Seed helpers write directly to committed state.

func (s *memStore) seedInvoice(inv models.Invoice) models.Invoice {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.InvoiceNumber == "" {
		s.data.invoiceSeq++
		inv.InvoiceNumber = fmt.Sprintf("INV/202509/%04d", s.data.invoiceSeq)
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusUnpaid
	}
	c := inv
	s.data.invoices[inv.ID] = &c
	return inv
}

func (s *memStore) seedAccount(acc models.BankAccount) models.BankAccount {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	c := acc
	s.data.accounts[acc.ID] = &c
	return acc
}

func (s *memStore) seedClient(cl models.Client) models.Client {
	if cl.ID == uuid.Nil {
		cl.ID = uuid.New()
	}
	c := cl
	s.data.clients[cl.ID] = &c
	return cl
}

func (s *memStore) invoice(id uuid.UUID) models.Invoice {
	return *s.data.invoices[id]
}

func (s *memStore) account(id uuid.UUID) models.BankAccount {
	return *s.data.accounts[id]
}

type memUsers struct{ s *memStore }

func (r memUsers) FindByID(ctx context.Context, id uint) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.data.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	defer r.s.lock()()
	if user.ID == 0 {
		r.s.data.nextUserID++
		user.ID = r.s.data.nextUserID
	}
	c := *user
	r.s.data.users[user.ID] = &c
	return nil
}

func (r memUsers) Update(ctx context.Context, user *models.User) error {
	defer r.s.lock()()
	c := *user
	r.s.data.users[user.ID] = &c
	return nil
}

func (r memUsers) Delete(ctx context.Context, id uint) error {
	defer r.s.lock()()
	delete(r.s.data.users, id)
	return nil
}

func (r memUsers) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	defer r.s.lock()()
	var out []models.User
	for _, u := range r.s.data.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	defer r.s.lock()()
	c := *token
	r.s.data.refreshTokens[token.Token] = &c
	return nil
}

func (r memTokens) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer r.s.lock()()
	t, ok := r.s.data.refreshTokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *t
	return &c, nil
}

func (r memTokens) DeleteByUserID(ctx context.Context, userID uint) error {
	defer r.s.lock()()
	for k, t := range r.s.data.refreshTokens {
		if t.UserID == userID {
			delete(r.s.data.refreshTokens, k)
		}
	}
	return nil
}

func (r memTokens) DeleteByToken(ctx context.Context, token string) error {
	defer r.s.lock()()
	delete(r.s.data.refreshTokens, token)
	return nil
}

type memClients struct{ s *memStore }

func (r memClients) FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	defer r.s.lock()()
	c, ok := r.s.data.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (r memClients) Create(ctx context.Context, client *models.Client) error {
	defer r.s.lock()()
	c := *client
	r.s.data.clients[client.ID] = &c
	return nil
}

func (r memClients) Update(ctx context.Context, client *models.Client) error {
	defer r.s.lock()()
	c := *client
	r.s.data.clients[client.ID] = &c
	return nil
}

func (r memClients) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.clients, id)
	return nil
}

func (r memClients) List(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
	defer r.s.lock()()
	var out []models.Client
	for _, c := range r.s.data.clients {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

type memProducts struct{ s *memStore }

func (r memProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer r.s.lock()()
	p, ok := r.s.data.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *p
	return &out, nil
}

func (r memProducts) Create(ctx context.Context, product *models.Product) error {
	defer r.s.lock()()
	c := *product
	r.s.data.products[product.ID] = &c
	return nil
}

func (r memProducts) Update(ctx context.Context, product *models.Product) error {
	defer r.s.lock()()
	c := *product
	r.s.data.products[product.ID] = &c
	return nil
}

func (r memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.products, id)
	return nil
}

func (r memProducts) List(ctx context.Context, query *repository.ListQuery) ([]models.Product, int64, error) {
	defer r.s.lock()()
	var out []models.Product
	for _, p := range r.s.data.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

type memSubscriptions struct{ s *memStore }

func (r memSubscriptions) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	defer r.s.lock()()
	sub, ok := r.s.data.subscriptions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *sub
	return &out, nil
}

func (r memSubscriptions) FindByIDWithProduct(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	defer r.s.lock()()
	sub, ok := r.s.data.subscriptions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *sub
	if p, ok := r.s.data.products[sub.ProductID]; ok {
		out.Product = *p
	}
	return &out, nil
}

func (r memSubscriptions) Create(ctx context.Context, subscription *models.Subscription) error {
	defer r.s.lock()()
	c := *subscription
	r.s.data.subscriptions[subscription.ID] = &c
	return nil
}

func (r memSubscriptions) Update(ctx context.Context, subscription *models.Subscription) error {
	defer r.s.lock()()
	c := *subscription
	r.s.data.subscriptions[subscription.ID] = &c
	return nil
}

func (r memSubscriptions) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.subscriptions, id)
	return nil
}

func (r memSubscriptions) List(ctx context.Context, query *repository.ListQuery) ([]models.Subscription, int64, error) {
	defer r.s.lock()()
	var out []models.Subscription
	for _, sub := range r.s.data.subscriptions {
		out = append(out, *sub)
	}
	return out, int64(len(out)), nil
}

func (r memSubscriptions) FindActiveExpiredBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	defer r.s.lock()()
	var out []models.Subscription
	for _, sub := range r.s.data.subscriptions {
		if sub.Status == models.SubscriptionStatusActive && now.After(sub.ExpiryDate) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type memInvoices struct{ s *memStore }

func (r memInvoices) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	defer r.s.lock()()
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *inv
	if c, ok := r.s.data.clients[inv.ClientID]; ok {
		out.Client = *c
	}
	return &out, nil
}

func (r memInvoices) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r memInvoices) Create(ctx context.Context, invoice *models.Invoice) error {
	defer r.s.lock()()
	c := *invoice
	r.s.data.invoices[invoice.ID] = &c
	return nil
}

func (r memInvoices) Update(ctx context.Context, invoice *models.Invoice) error {
	defer r.s.lock()()
	c := *invoice
	r.s.data.invoices[invoice.ID] = &c
	return nil
}

func (r memInvoices) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.invoices, id)
	return nil
}

func (r memInvoices) List(ctx context.Context, query *repository.ListQuery) ([]models.Invoice, int64, error) {
	defer r.s.lock()()
	var out []models.Invoice
	for _, inv := range r.s.data.invoices {
		out = append(out, *inv)
	}
	return out, int64(len(out)), nil
}

func (r memInvoices) NextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	defer r.s.lock()()
	r.s.data.invoiceSeq++
	return fmt.Sprintf("INV/%s/%04d", now.Format("200601"), r.s.data.invoiceSeq), nil
}

func (r memInvoices) FindUnpaidPastDue(ctx context.Context, now time.Time) ([]models.Invoice, error) {
	defer r.s.lock()()
	var out []models.Invoice
	for _, inv := range r.s.data.invoices {
		if inv.Status == models.InvoiceStatusUnpaid && now.After(inv.DueDate) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r memInvoices) CountByStatus(ctx context.Context) (map[string]int64, error) {
	defer r.s.lock()()
	out := make(map[string]int64)
	for _, inv := range r.s.data.invoices {
		out[inv.Status]++
	}
	return out, nil
}

type memPayments struct{ s *memStore }

func (r memPayments) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	defer r.s.lock()()
	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *p
	return &out, nil
}

func (r memPayments) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r memPayments) Create(ctx context.Context, payment *models.Payment) error {
	defer r.s.lock()()
	c := *payment
	r.s.data.payments[payment.ID] = &c
	return nil
}

func (r memPayments) Update(ctx context.Context, payment *models.Payment) error {
	defer r.s.lock()()
	c := *payment
	r.s.data.payments[payment.ID] = &c
	return nil
}

func (r memPayments) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.payments, id)
	return nil
}

func (r memPayments) List(ctx context.Context, query *repository.ListQuery) ([]models.Payment, int64, error) {
	defer r.s.lock()()
	var out []models.Payment
	for _, p := range r.s.data.payments {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r memPayments) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	defer r.s.lock()()
	var out []models.Payment
	for _, p := range r.s.data.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPayments) CountAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	defer r.s.lock()()
	var n int64
	for _, p := range r.s.data.payments {
		if p.InvoiceID == invoiceID && p.Applied {
			n++
		}
	}
	return n, nil
}

func (r memPayments) FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	defer r.s.lock()()
	var out []models.Payment
	for _, p := range r.s.data.payments {
		if !p.Applied && p.CreatedAt.Before(cutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memAccounts struct{ s *memStore }

func (r memAccounts) FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	defer r.s.lock()()
	a, ok := r.s.data.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *a
	return &out, nil
}

func (r memAccounts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	return r.FindByID(ctx, id)
}

func (r memAccounts) FindAll(ctx context.Context) ([]models.BankAccount, error) {
	defer r.s.lock()()
	var out []models.BankAccount
	for _, a := range r.s.data.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (r memAccounts) Create(ctx context.Context, account *models.BankAccount) error {
	defer r.s.lock()()
	c := *account
	r.s.data.accounts[account.ID] = &c
	return nil
}

func (r memAccounts) Update(ctx context.Context, account *models.BankAccount) error {
	defer r.s.lock()()
	c := *account
	r.s.data.accounts[account.ID] = &c
	return nil
}

func (r memAccounts) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	delete(r.s.data.accounts, id)
	return nil
}

func (r memAccounts) List(ctx context.Context, query *repository.ListQuery) ([]models.BankAccount, int64, error) {
	defer r.s.lock()()
	var out []models.BankAccount
	for _, a := range r.s.data.accounts {
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

type memCashFlows struct{ s *memStore }

func (r memCashFlows) FindByID(ctx context.Context, id uint) (*models.CashFlowEntry, error) {
	defer r.s.lock()()
	e, ok := r.s.data.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *e
	return &out, nil
}

func (r memCashFlows) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.CashFlowEntry, error) {
	defer r.s.lock()()
	for _, e := range r.s.data.entries {
		if e.PaymentID != nil && *e.PaymentID == paymentID {
			out := *e
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memCashFlows) Create(ctx context.Context, entry *models.CashFlowEntry) error {
	defer r.s.lock()()
	if entry.ID == 0 {
		r.s.data.nextEntryID++
		entry.ID = r.s.data.nextEntryID
	}
	c := *entry
	r.s.data.entries[entry.ID] = &c
	return nil
}

func (r memCashFlows) Delete(ctx context.Context, id uint) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.data.entries[id]; !ok {
		return 0, nil
	}
	delete(r.s.data.entries, id)
	return 1, nil
}

func (r memCashFlows) DeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	defer r.s.lock()()
	var rows int64
	for id, e := range r.s.data.entries {
		if e.PaymentID != nil && *e.PaymentID == paymentID {
			delete(r.s.data.entries, id)
			rows++
		}
	}
	return rows, nil
}

func (r memCashFlows) List(ctx context.Context, query *repository.ListQuery) ([]models.CashFlowEntry, int64, error) {
	defer r.s.lock()()
	var out []models.CashFlowEntry
	for _, e := range r.s.data.entries {
		out = append(out, *e)
	}
	return out, int64(len(out)), nil
}

func (r memCashFlows) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]models.CashFlowEntry, error) {
	defer r.s.lock()()
	var out []models.CashFlowEntry
	for _, e := range r.s.data.entries {
		if e.BankAccountID != nil && *e.BankAccountID == accountID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r memCashFlows) SumSignedByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	defer r.s.lock()()
	sum := decimal.Zero
	for _, e := range r.s.data.entries {
		if e.BankAccountID != nil && *e.BankAccountID == accountID {
			sum = sum.Add(e.SignedAmount())
		}
	}
	return sum, nil
}

func (r memCashFlows) SummarizeRange(ctx context.Context, from, to time.Time) ([]repository.CategoryTotal, error) {
	defer r.s.lock()()
	totals := make(map[string]*repository.CategoryTotal)
	for _, e := range r.s.data.entries {
		if e.EntryDate.Before(from) || e.EntryDate.After(to) {
			continue
		}
		key := e.Type + "/" + e.Category
		t, ok := totals[key]
		if !ok {
			t = &repository.CategoryTotal{Type: e.Type, Category: e.Category, Total: decimal.Zero}
			totals[key] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}
	out := make([]repository.CategoryTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	return out, nil
}
