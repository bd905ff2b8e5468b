package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
	"github.com/xraph/loyalty/store"
)

type Store struct {
	mu sync.RWMutex
	// txMu serializes transactions so a snapshot covers the whole
	// transaction body.
	txMu sync.Mutex

	// Customer storage
	customers map[string]*customer.Customer
	changes   []*customer.ChangeEntry

	// Bonus ledger storage, keyed by customer ID
	balances     map[string]*bonus.Balance
	transactions []*bonus.Transaction

	// Discount storage
	rules        map[string]*discount.Rule
	applications []*discount.Application

	// Purchase storage
	purchases map[string]*purchase.Purchase
	receipts  map[string]string // receipt number -> purchase ID

	// Notification storage
	notifications map[string]*notification.Notification
}

func New() *Store {
	return &Store{
		customers:     make(map[string]*customer.Customer),
		changes:       make([]*customer.ChangeEntry, 0),
		balances:      make(map[string]*bonus.Balance),
		transactions:  make([]*bonus.Transaction, 0),
		rules:         make(map[string]*discount.Rule),
		applications:  make([]*discount.Application, 0),
		purchases:     make(map[string]*purchase.Purchase),
		receipts:      make(map[string]string),
		notifications: make(map[string]*notification.Notification),
	}
}

// Customer Store implementation

func (s *Store) CreateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID.String()]; exists {
		return loyalty.ErrAlreadyExists
	}
	for _, existing := range s.customers {
		if existing.Phone == c.Phone {
			return loyalty.ErrCustomerExists
		}
	}
	cp := *c
	s.customers[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetCustomer(_ context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.customers[customerID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, loyalty.ErrCustomerNotFound
}

func (s *Store) GetCustomerByPhone(_ context.Context, phone string) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, loyalty.ErrCustomerNotFound
}

func (s *Store) ListCustomers(_ context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*customer.Customer, 0)
	for _, c := range s.customers {
		if opts.Status == "" || c.Status == opts.Status {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID.String()]; !exists {
		return loyalty.ErrCustomerNotFound
	}
	cp := *c
	s.customers[c.ID.String()] = &cp
	return nil
}

func (s *Store) AppendCustomerChange(_ context.Context, entry *customer.ChangeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.changes = append(s.changes, &cp)
	return nil
}

func (s *Store) ListCustomerChanges(_ context.Context, customerID id.CustomerID, opts customer.ListOpts) ([]*customer.ChangeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*customer.ChangeEntry, 0)
	for _, e := range s.changes {
		if e.CustomerID == customerID {
			cp := *e
			result = append(result, &cp)
		}
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() > result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// Bonus Store implementation

func (s *Store) GetBalance(_ context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[customerID.String()]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, loyalty.ErrBalanceNotFound
}

func (s *Store) GetBalanceForUpdate(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	// No row locks in memory; transactions are serialized by txMu.
	return s.GetBalance(ctx, customerID)
}

func (s *Store) SaveBalance(_ context.Context, b *bonus.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.balances[b.CustomerID.String()] = &cp
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, t *bonus.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, customerID id.CustomerID, opts bonus.ListOpts) ([]*bonus.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*bonus.Transaction, 0)
	for _, t := range s.transactions {
		if t.CustomerID == customerID {
			if opts.Type == "" || t.Type == opts.Type {
				cp := *t
				result = append(result, &cp)
			}
		}
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() > result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// Discount Store implementation

func (s *Store) CreateRule(_ context.Context, r *discount.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID.String()]; exists {
		return loyalty.ErrAlreadyExists
	}
	cp := *r
	s.rules[r.ID.String()] = &cp
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID id.RuleID) (*discount.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rules[ruleID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, loyalty.ErrRuleNotFound
}

func (s *Store) ListRules(_ context.Context, opts discount.ListOpts) ([]*discount.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*discount.Rule, 0)
	for _, r := range s.rules {
		if opts.Status == "" || r.Status == opts.Status {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListActiveRules(_ context.Context, storeID string, asOf time.Time) ([]*discount.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*discount.Rule, 0)
	for _, r := range s.rules {
		if r.Status != discount.StatusActive {
			continue
		}
		if !r.ValidAt(asOf) {
			continue
		}
		if !r.AppliesToStore(storeID) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	// Stable evaluation order
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) UpdateRule(_ context.Context, r *discount.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID.String()]; !exists {
		return loyalty.ErrRuleNotFound
	}
	cp := *r
	s.rules[r.ID.String()] = &cp
	return nil
}

func (s *Store) IncrementRuleUses(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, exists := s.rules[ruleID.String()]; exists {
		r.CurrentUses++
		return nil
	}
	return loyalty.ErrRuleNotFound
}

func (s *Store) CreateApplication(_ context.Context, a *discount.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.applications = append(s.applications, &cp)
	return nil
}

func (s *Store) CountApplications(_ context.Context, ruleID id.RuleID, customerID id.CustomerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.applications {
		if a.RuleID == ruleID && a.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListApplications(_ context.Context, purchaseID id.PurchaseID) ([]*discount.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*discount.Application, 0)
	for _, a := range s.applications {
		if a.PurchaseID == purchaseID {
			cp := *a
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// Purchase Store implementation

func (s *Store) CreatePurchase(_ context.Context, p *purchase.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchases[p.ID.String()]; exists {
		return loyalty.ErrAlreadyExists
	}
	if p.ReceiptNumber != "" {
		if _, exists := s.receipts[p.ReceiptNumber]; exists {
			return loyalty.ErrDuplicateReceipt
		}
		s.receipts[p.ReceiptNumber] = p.ID.String()
	}
	cp := *p
	s.purchases[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPurchase(_ context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.purchases[purchaseID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, loyalty.ErrPurchaseNotFound
}

func (s *Store) GetPurchaseByReceipt(_ context.Context, receiptNumber string) (*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pid, ok := s.receipts[receiptNumber]; ok {
		if p, ok := s.purchases[pid]; ok {
			cp := *p
			return &cp, nil
		}
	}
	return nil, loyalty.ErrPurchaseNotFound
}

func (s *Store) ListPurchases(_ context.Context, customerID id.CustomerID, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*purchase.Purchase, 0)
	for _, p := range s.purchases {
		if p.CustomerID == customerID {
			if opts.StoreID == "" || p.StoreID == opts.StoreID {
				cp := *p
				result = append(result, &cp)
			}
		}
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() > result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// Notification Store implementation

func (s *Store) CreateNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.notifications[n.ID.String()] = &cp
	return nil
}

func (s *Store) UpdateNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID.String()]; !exists {
		return loyalty.ErrNotificationNotFound
	}
	cp := *n
	s.notifications[n.ID.String()] = &cp
	return nil
}

func (s *Store) ListNotifications(_ context.Context, customerID id.CustomerID, opts notification.ListOpts) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*notification.Notification, 0)
	for _, n := range s.notifications {
		if n.CustomerID == customerID {
			if opts.Status == "" || n.Status == opts.Status {
				cp := *n
				result = append(result, &cp)
			}
		}
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() > result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// Store management

// RunInTx serializes the transaction body against all others, snapshots
// the whole store up front, and restores the snapshot if fn fails. All
// reads and writes inside fn operate on the live store, so fn sees its
// own writes.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// snapshot/restore back RunInTx. Values are copied so a rollback undoes
// in-place mutations like IncrementRuleUses.

type stateSnapshot struct {
	customers     map[string]*customer.Customer
	changes       []*customer.ChangeEntry
	balances      map[string]*bonus.Balance
	transactions  []*bonus.Transaction
	rules         map[string]*discount.Rule
	applications  []*discount.Application
	purchases     map[string]*purchase.Purchase
	receipts      map[string]string
	notifications map[string]*notification.Notification
}

func (s *Store) snapshot() *stateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &stateSnapshot{
		customers:     make(map[string]*customer.Customer, len(s.customers)),
		changes:       make([]*customer.ChangeEntry, len(s.changes)),
		balances:      make(map[string]*bonus.Balance, len(s.balances)),
		transactions:  make([]*bonus.Transaction, len(s.transactions)),
		rules:         make(map[string]*discount.Rule, len(s.rules)),
		applications:  make([]*discount.Application, len(s.applications)),
		purchases:     make(map[string]*purchase.Purchase, len(s.purchases)),
		receipts:      make(map[string]string, len(s.receipts)),
		notifications: make(map[string]*notification.Notification, len(s.notifications)),
	}
	for k, v := range s.customers {
		cp := *v
		snap.customers[k] = &cp
	}
	copy(snap.changes, s.changes)
	for k, v := range s.balances {
		cp := *v
		snap.balances[k] = &cp
	}
	copy(snap.transactions, s.transactions)
	for k, v := range s.rules {
		cp := *v
		snap.rules[k] = &cp
	}
	copy(snap.applications, s.applications)
	for k, v := range s.purchases {
		cp := *v
		snap.purchases[k] = &cp
	}
	for k, v := range s.receipts {
		snap.receipts[k] = v
	}
	for k, v := range s.notifications {
		cp := *v
		snap.notifications[k] = &cp
	}
	return snap
}

func (s *Store) restore(snap *stateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = snap.customers
	s.changes = snap.changes
	s.balances = snap.balances
	s.transactions = snap.transactions
	s.rules = snap.rules
	s.applications = snap.applications
	s.purchases = snap.purchases
	s.receipts = snap.receipts
	s.notifications = snap.notifications
}

// page applies offset/limit to an already-sorted slice.
func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
