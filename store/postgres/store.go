package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// pgQuerier is the query-builder surface shared by *pgdriver.PgDB and
// *pgdriver.PgTx, letting the same store methods run against the pool or
// inside a transaction.
type pgQuerier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg pgQuerier
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("loyalty/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loyalty/postgres: migration failed: %w", err)
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

// RunInTx runs fn inside a database transaction. The store passed to fn
// is scoped to that transaction; a returned error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx loyaltystore.Store) error) error {
	pg, ok := s.pg.(*pgdriver.PgDB)
	if !ok {
		// Already transaction-scoped: run fn against the same transaction.
		return fn(ctx, s)
	}
	tx, err := pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	txStore := &Store{db: s.db, pg: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ==================== Customer Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	m := new(customerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", customerID.String()).
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
	err := s.pg.NewSelect(m).
		Where("phone = $1", phone).
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
	q := s.pg.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = $1", string(opts.Status))
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListCustomerChanges(ctx context.Context, customerID id.CustomerID, opts customer.ListOpts) ([]*customer.ChangeEntry, error) {
	var models []customerChangeModel
	q := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID.String())

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
	err := s.pg.NewSelect(m).
		Where("customer_id = $1", customerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrBalanceNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

// GetBalanceForUpdate locks the balance row so concurrent settlements
// for the same customer serialize on it.
func (s *Store) GetBalanceForUpdate(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	m := new(balanceModel)
	err := s.pg.NewRaw(`
		SELECT id, customer_id, currency, current_cents, total_earned_cents, total_spent_cents, updated_at
		FROM loyalty_balances WHERE customer_id = $1 FOR UPDATE
	`, customerID.String()).Scan(ctx,
		&m.ID, &m.CustomerID, &m.Currency,
		&m.CurrentCents, &m.TotalEarnedCents, &m.TotalSpentCents,
		&m.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrBalanceNotFound
		}
		return nil, err
	}
	return fromBalanceModel(m)
}

func (s *Store) SaveBalance(ctx context.Context, b *bonus.Balance) error {
	m := toBalanceModel(b)
	_, err := s.pg.NewInsert(m).
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListTransactions(ctx context.Context, customerID id.CustomerID, opts bonus.ListOpts) ([]*bonus.Transaction, error) {
	var models []bonusTransactionModel
	q := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID.String())

	if opts.Type != "" {
		q = q.Where("type = $2", string(opts.Type))
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRule(ctx context.Context, ruleID id.RuleID) (*discount.Rule, error) {
	m := new(ruleModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", ruleID.String()).
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
	q := s.pg.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = $1", string(opts.Status))
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

func (s *Store) ListActiveRules(ctx context.Context, storeID string, asOf time.Time) ([]*discount.Rule, error) {
	var models []ruleModel
	err := s.pg.NewSelect(&models).
		Where("status = $1", string(discount.StatusActive)).
		Where("(valid_from IS NULL OR valid_from <= $2)", asOf).
		Where("(valid_until IS NULL OR valid_until >= $3)", asOf).
		Where("(stores = '[]'::jsonb OR stores @> jsonb_build_array($4::text))", storeID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
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

func (s *Store) UpdateRule(ctx context.Context, r *discount.Rule) error {
	m := toRuleModel(r)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
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
	res, err := s.pg.NewUpdate((*ruleModel)(nil)).
		Set("current_uses = current_uses + 1").
		Set("updated_at = $1", now()).
		Where("id = $2", ruleID.String()).
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) CountApplications(ctx context.Context, ruleID id.RuleID, customerID id.CustomerID) (int, error) {
	var count int
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM loyalty_discount_applications
		WHERE rule_id = $1 AND customer_id = $2
	`, ruleID.String(), customerID.String()).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListApplications(ctx context.Context, purchaseID id.PurchaseID) ([]*discount.Application, error) {
	var models []applicationModel
	err := s.pg.NewSelect(&models).
		Where("purchase_id = $1", purchaseID.String()).
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	m := new(purchaseModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", purchaseID.String()).
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
	err := s.pg.NewSelect(m).
		Where("receipt_number = $1", receiptNumber).
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
	q := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID.String())

	if opts.StoreID != "" {
		q = q.Where("store_id = $2", opts.StoreID)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) UpdateNotification(ctx context.Context, n *notification.Notification) error {
	m := toNotificationModel(n)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
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
	q := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID.String())

	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
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
