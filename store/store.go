package store

import (
	"context"
	"time"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
)

// Store is the unified storage interface for all Loyalty entities.
// Instead of embedding the sub-interfaces, we explicitly declare all
// methods to avoid naming conflicts.
type Store interface {
	// Customer methods
	CreateCustomer(ctx context.Context, c *customer.Customer) error
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*customer.Customer, error)
	ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error)
	UpdateCustomer(ctx context.Context, c *customer.Customer) error
	AppendCustomerChange(ctx context.Context, entry *customer.ChangeEntry) error
	ListCustomerChanges(ctx context.Context, customerID id.CustomerID, opts customer.ListOpts) ([]*customer.ChangeEntry, error)

	// Bonus ledger methods
	GetBalance(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error)
	GetBalanceForUpdate(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error)
	SaveBalance(ctx context.Context, b *bonus.Balance) error
	AppendTransaction(ctx context.Context, t *bonus.Transaction) error
	ListTransactions(ctx context.Context, customerID id.CustomerID, opts bonus.ListOpts) ([]*bonus.Transaction, error)

	// Discount rule methods
	CreateRule(ctx context.Context, r *discount.Rule) error
	GetRule(ctx context.Context, ruleID id.RuleID) (*discount.Rule, error)
	ListRules(ctx context.Context, opts discount.ListOpts) ([]*discount.Rule, error)
	ListActiveRules(ctx context.Context, storeID string, asOf time.Time) ([]*discount.Rule, error)
	UpdateRule(ctx context.Context, r *discount.Rule) error
	IncrementRuleUses(ctx context.Context, ruleID id.RuleID) error
	CreateApplication(ctx context.Context, a *discount.Application) error
	CountApplications(ctx context.Context, ruleID id.RuleID, customerID id.CustomerID) (int, error)
	ListApplications(ctx context.Context, purchaseID id.PurchaseID) ([]*discount.Application, error)

	// Purchase methods
	CreatePurchase(ctx context.Context, p *purchase.Purchase) error
	GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error)
	GetPurchaseByReceipt(ctx context.Context, receiptNumber string) (*purchase.Purchase, error)
	ListPurchases(ctx context.Context, customerID id.CustomerID, opts purchase.ListOpts) ([]*purchase.Purchase, error)

	// Notification methods
	CreateNotification(ctx context.Context, n *notification.Notification) error
	UpdateNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, customerID id.CustomerID, opts notification.ListOpts) ([]*notification.Notification, error)

	// Core methods
	//
	// RunInTx runs fn against a transaction-scoped view of the store.
	// All writes fn performs are committed together or not at all.
	// Purchase settlement depends on this for its rollback semantics.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
