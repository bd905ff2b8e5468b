package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
	loyaltystore "github.com/xraph/loyalty/store"
)

// compile-time interface check
var _ loyaltystore.Store = (*Store)(nil)

// sqliteQuerier is the query-builder surface shared by *sqlitedriver.SqliteDB
// and *sqlitedriver.SqliteTx, letting the same store methods run against the
// pool or inside a transaction.
type sqliteQuerier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb sqliteQuerier
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("loyalty/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loyalty/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx runs fn inside a database transaction. SQLite serializes
// writers, so the transaction also serializes concurrent settlements.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx loyaltystore.Store) error) error {
	sdb, ok := s.sdb.(*sqlitedriver.SqliteDB)
	if !ok {
		// Already transaction-scoped: run fn against the same transaction.
		return fn(ctx, s)
	}
	tx, err := sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	txStore := &Store{db: s.db, sdb: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ==================== Customer Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	m := new(customerModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", customerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m)
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	m := new(customerModel)
	err := s.sdb.NewSelect(m).
		Where("phone = ?", phone).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m)
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var models []customerModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*customer.Customer, len(models))
	for i := range models {
		c, err := fromCustomerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loyalty.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) AppendCustomerChange(ctx context.Context, entry *customer.ChangeEntry) error {
	m := toCustomerChangeModel(entry)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListCustomerChanges(ctx context.Context, customerID id.CustomerID, opts customer.ListOpts) ([]*customer.ChangeEntry, error) {
	var models []customerChangeModel
	q := s.sdb.NewSelect(&models).
		Where("customer_id = ?", customerID.String())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("changed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*customer.ChangeEntry, len(models))
	for i := range models {
		e, err := fromCustomerChangeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Bonus Store ====================

func (s *Store) GetBalance(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("customer_id = ?", customerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrBalanceNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

// GetBalanceForUpdate has no row lock on SQLite; the database-level
// write lock taken by the enclosing transaction covers it.
func (s *Store) GetBalanceForUpdate(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	return s.GetBalance(ctx, customerID)
}

func (s *Store) SaveBalance(ctx context.Context, b *bonus.Balance) error {
	m := toBalanceModel(b)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(customer_id) DO UPDATE").
		Set("currency = EXCLUDED.currency").
		Set("current_cents = EXCLUDED.current_cents").
		Set("total_earned_cents = EXCLUDED.total_earned_cents").
		Set("total_spent_cents = EXCLUDED.total_spent_cents").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) AppendTransaction(ctx context.Context, t *bonus.Transaction) error {
	m := toBonusTransactionModel(t)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListTransactions(ctx context.Context, customerID id.CustomerID, opts bonus.ListOpts) ([]*bonus.Transaction, error) {
	var models []bonusTransactionModel
	q := s.sdb.NewSelect(&models).
		Where("customer_id = ?", customerID.String())

	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurred_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*bonus.Transaction, len(models))
	for i := range models {
		t, err := fromBonusTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Discount Store ====================

func (s *Store) CreateRule(ctx context.Context, r *discount.Rule) error {
	m := toRuleModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRule(ctx context.Context, ruleID id.RuleID) (*discount.Rule, error) {
	m := new(ruleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrRuleNotFound
		}
		return nil, err
	}
	return fromRuleModel(m)
}

func (s *Store) ListRules(ctx context.Context, opts discount.ListOpts) ([]*discount.Rule, error) {
	var models []ruleModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*discount.Rule, len(models))
	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ListActiveRules filters status and validity window in SQL; store
// scope lives in a JSON text column, so it is filtered in Go.
func (s *Store) ListActiveRules(ctx context.Context, storeID string, asOf time.Time) ([]*discount.Rule, error) {
	var models []ruleModel
	err := s.sdb.NewSelect(&models).
		Where("status = ?", string(discount.StatusActive)).
		Where("(valid_from IS NULL OR valid_from <= ?)", asOf).
		Where("(valid_until IS NULL OR valid_until >= ?)", asOf).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*discount.Rule, 0, len(models))
	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		if !r.AppliesToStore(storeID) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) UpdateRule(ctx context.Context, r *discount.Rule) error {
	m := toRuleModel(r)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loyalty.ErrRuleNotFound
	}
	return nil
}

func (s *Store) IncrementRuleUses(ctx context.Context, ruleID id.RuleID) error {
	res, err := s.sdb.NewUpdate((*ruleModel)(nil)).
		Set("current_uses = current_uses + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loyalty.ErrRuleNotFound
	}
	return nil
}

func (s *Store) CreateApplication(ctx context.Context, a *discount.Application) error {
	m := toApplicationModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) CountApplications(ctx context.Context, ruleID id.RuleID, customerID id.CustomerID) (int, error) {
	var count int
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM loyalty_discount_applications
		WHERE rule_id = ? AND customer_id = ?
	`, ruleID.String(), customerID.String()).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListApplications(ctx context.Context, purchaseID id.PurchaseID) ([]*discount.Application, error) {
	var models []applicationModel
	err := s.sdb.NewSelect(&models).
		Where("purchase_id = ?", purchaseID.String()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*discount.Application, len(models))
	for i := range models {
		a, err := fromApplicationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Purchase Store ====================

func (s *Store) CreatePurchase(ctx context.Context, p *purchase.Purchase) error {
	m := toPurchaseModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	m := new(purchaseModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", purchaseID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrPurchaseNotFound
		}
		return nil, err
	}
	return fromPurchaseModel(m)
}

func (s *Store) GetPurchaseByReceipt(ctx context.Context, receiptNumber string) (*purchase.Purchase, error) {
	m := new(purchaseModel)
	err := s.sdb.NewSelect(m).
		Where("receipt_number = ?", receiptNumber).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrPurchaseNotFound
		}
		return nil, err
	}
	return fromPurchaseModel(m)
}

func (s *Store) ListPurchases(ctx context.Context, customerID id.CustomerID, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	var models []purchaseModel
	q := s.sdb.NewSelect(&models).
		Where("customer_id = ?", customerID.String())

	if opts.StoreID != "" {
		q = q.Where("store_id = ?", opts.StoreID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("purchased_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*purchase.Purchase, len(models))
	for i := range models {
		p, err := fromPurchaseModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Notification Store ====================

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	m := toNotificationModel(n)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) UpdateNotification(ctx context.Context, n *notification.Notification) error {
	m := toNotificationModel(n)
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loyalty.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, customerID id.CustomerID, opts notification.ListOpts) ([]*notification.Notification, error) {
	var models []notificationModel
	q := s.sdb.NewSelect(&models).
		Where("customer_id = ?", customerID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*notification.Notification, len(models))
	for i := range models {
		n, err := fromNotificationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
