package loyalty_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/types"
)

func newTestEngine(t *testing.T) *loyalty.Engine {
	t.Helper()

	engine := loyalty.New(memory.New(),
		loyalty.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		loyalty.WithCurrency("usd"),
	)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := engine.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})

	return engine
}

func registerCustomer(t *testing.T, engine *loyalty.Engine, phone string) *customer.Customer {
	t.Helper()

	c, err := engine.RegisterCustomer(context.Background(), loyalty.RegisterCustomerInput{
		Phone:     phone,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("RegisterCustomer failed: %v", err)
	}
	return c
}

func cashier(storeID string) loyalty.Actor {
	return loyalty.Actor{CashierID: "cashier-1", StoreID: storeID}
}

func TestRegisterCustomer(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	c := registerCustomer(t, engine, "+15550001111")
	if c.Status != customer.StatusActive {
		t.Errorf("status: got %s, want %s", c.Status, customer.StatusActive)
	}
	if c.TotalVisits != 0 {
		t.Errorf("total visits: got %d, want 0", c.TotalVisits)
	}

	// Registration opens a zero balance.
	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !b.Current.IsZero() {
		t.Errorf("expected zero opening balance, got %v", b.Current)
	}

	// Duplicate phone is rejected.
	_, err = engine.RegisterCustomer(ctx, loyalty.RegisterCustomerInput{
		Phone:     "+15550001111",
		FirstName: "Grace",
	})
	if !errors.Is(err, loyalty.ErrCustomerExists) {
		t.Errorf("expected ErrCustomerExists, got %v", err)
	}

	// Lookup by phone.
	found, err := engine.GetCustomerByPhone(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("GetCustomerByPhone failed: %v", err)
	}
	if found.ID != c.ID {
		t.Errorf("lookup mismatch: got %s, want %s", found.ID, c.ID)
	}
}

func TestUpdateCustomerRecordsChanges(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550002222")

	email := "ada@example.com"
	firstName := "Augusta"
	updated, err := engine.UpdateCustomer(ctx, c.ID, loyalty.UpdateCustomerInput{
		Email:     &email,
		FirstName: &firstName,
		ChangedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}
	if updated.Email != email || updated.FirstName != firstName {
		t.Errorf("update not applied: %+v", updated)
	}

	changes, err := engine.CustomerChanges(ctx, c.ID, customer.ListOpts{})
	if err != nil {
		t.Fatalf("CustomerChanges failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 change entries, got %d", len(changes))
	}
	for _, ch := range changes {
		if ch.ChangedBy != "admin-1" {
			t.Errorf("changed_by: got %q, want admin-1", ch.ChangedBy)
		}
	}

	// No-op update writes no entries.
	sameEmail := email
	if _, err := engine.UpdateCustomer(ctx, c.ID, loyalty.UpdateCustomerInput{Email: &sameEmail}); err != nil {
		t.Fatalf("no-op UpdateCustomer failed: %v", err)
	}
	changes, err = engine.CustomerChanges(ctx, c.ID, customer.ListOpts{})
	if err != nil {
		t.Fatalf("CustomerChanges failed: %v", err)
	}
	if len(changes) != 2 {
		t.Errorf("no-op update added change entries: got %d, want 2", len(changes))
	}
}

func TestCreditAndDebitBonuses(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550003333")

	txn, err := engine.CreditBonuses(ctx, c.ID, types.USD(1000), "welcome bonus")
	if err != nil {
		t.Fatalf("CreditBonuses failed: %v", err)
	}
	if !txn.BalanceBefore.IsZero() || !txn.BalanceAfter.Equal(types.USD(1000)) {
		t.Errorf("audit trail: before %v after %v", txn.BalanceBefore, txn.BalanceAfter)
	}

	txn, err = engine.DebitBonuses(ctx, c.ID, types.USD(400), "manual adjustment")
	if err != nil {
		t.Fatalf("DebitBonuses failed: %v", err)
	}
	if !txn.BalanceAfter.Equal(types.USD(600)) {
		t.Errorf("balance after debit: got %v, want %v", txn.BalanceAfter, types.USD(600))
	}

	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !b.Current.Equal(b.TotalEarned.Subtract(b.TotalSpent)) {
		t.Errorf("invariant violated: current %v, earned %v, spent %v",
			b.Current, b.TotalEarned, b.TotalSpent)
	}

	// Overdrawing fails and leaves the balance untouched.
	_, err = engine.DebitBonuses(ctx, c.ID, types.USD(10000), "overdraw")
	if !errors.Is(err, loyalty.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	b, err = engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !b.Current.Equal(types.USD(600)) {
		t.Errorf("failed debit changed balance: got %v, want %v", b.Current, types.USD(600))
	}

	// Non-positive amounts are rejected.
	if _, err := engine.CreditBonuses(ctx, c.ID, types.USD(0), ""); !errors.Is(err, loyalty.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero credit, got %v", err)
	}
	if _, err := engine.DebitBonuses(ctx, c.ID, types.USD(-5), ""); !errors.Is(err, loyalty.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative debit, got %v", err)
	}

	txns, err := engine.Transactions(ctx, c.ID, bonus.ListOpts{})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(txns) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(txns))
	}
}

func TestQuoteDiscounts(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550004444")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:              "10% over $500",
		Type:              discount.TypePercentage,
		PercentBP:         1000,
		MinPurchaseAmount: types.USD(50000),
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(60000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 1 {
		t.Fatalf("expected 1 discount, got %d", len(q.Discounts))
	}
	if !q.TotalDiscount.Equal(types.USD(6000)) {
		t.Errorf("total discount: got %v, want %v", q.TotalDiscount, types.USD(6000))
	}
	if !q.FinalAmount.Equal(types.USD(54000)) {
		t.Errorf("final amount: got %v, want %v", q.FinalAmount, types.USD(54000))
	}
	if !q.BonusesEarned.Equal(types.USD(540)) {
		t.Errorf("bonuses earned: got %v, want %v", q.BonusesEarned, types.USD(540))
	}

	// Under the purchase floor no rule applies.
	q, err = engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(40000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("expected no discounts under floor, got %d", len(q.Discounts))
	}
	if !q.FinalAmount.Equal(types.USD(40000)) {
		t.Errorf("final amount: got %v, want %v", q.FinalAmount, types.USD(40000))
	}

	// Quoting commits nothing, so quoting twice is identical.
	q2, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(60000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if !q2.TotalDiscount.Equal(types.USD(6000)) || !q2.FinalAmount.Equal(types.USD(54000)) {
		t.Errorf("repeat quote differs: discount %v final %v", q2.TotalDiscount, q2.FinalAmount)
	}
}

func TestQuoteStacksAdditively(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550005555")

	mustRule := func(in loyalty.CreateRuleInput) {
		t.Helper()
		if _, err := engine.CreateRule(ctx, in); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", in.Name, err)
		}
	}

	mustRule(loyalty.CreateRuleInput{Name: "5% storewide", Type: discount.TypePercentage, PercentBP: 500})
	mustRule(loyalty.CreateRuleInput{Name: "$2 off", Type: discount.TypeFixedAmount, Amount: types.USD(200)})

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 2 {
		t.Fatalf("expected 2 discounts, got %d", len(q.Discounts))
	}
	// 5% of $100.00 = $5.00, plus $2.00 fixed.
	if !q.TotalDiscount.Equal(types.USD(700)) {
		t.Errorf("total discount: got %v, want %v", q.TotalDiscount, types.USD(700))
	}
	if !q.FinalAmount.Equal(types.USD(9300)) {
		t.Errorf("final amount: got %v, want %v", q.FinalAmount, types.USD(9300))
	}
}

func TestQuoteClampsToMaxDiscountAndPurchase(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550006666")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:              "50% capped at $10",
		Type:              discount.TypePercentage,
		PercentBP:         5000,
		MaxDiscountAmount: types.USD(1000),
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if !q.TotalDiscount.Equal(types.USD(1000)) {
		t.Errorf("discount not clamped to cap: got %v, want %v", q.TotalDiscount, types.USD(1000))
	}

	// A giant fixed discount never pushes the final amount below zero.
	_, err = engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:   "$500 off",
		Type:   discount.TypeFixedAmount,
		Amount: types.USD(50000),
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err = engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(2000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if !q.TotalDiscount.Equal(types.USD(2000)) {
		t.Errorf("total discount exceeds purchase: got %v", q.TotalDiscount)
	}
	if !q.FinalAmount.IsZero() {
		t.Errorf("final amount went below zero: got %v", q.FinalAmount)
	}
	if !q.BonusesEarned.IsZero() {
		t.Errorf("zero-total purchase earned bonuses: got %v", q.BonusesEarned)
	}
}

func TestQuoteStoreScope(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550007777")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:      "store-2 only",
		Type:      discount.TypePercentage,
		PercentBP: 1000,
		Stores:    []string{"store-2"},
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("rule leaked outside its store scope")
	}

	q, err = engine.QuoteDiscounts(ctx, c.ID, "store-2", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 1 {
		t.Errorf("rule missing in its own store: got %d discounts", len(q.Discounts))
	}
}

func TestQuoteValidityWindow(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550008888")

	past := time.Now().UTC().Add(-48 * time.Hour)
	expired := time.Now().UTC().Add(-24 * time.Hour)
	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:       "lapsed promo",
		Type:       discount.TypePercentage,
		PercentBP:  2000,
		ValidFrom:  &past,
		ValidUntil: &expired,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("expired rule still matched")
	}
}

func TestQuoteNewCustomerGate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15550009999")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:            "first purchase 15%",
		Type:            discount.TypePercentage,
		PercentBP:       1500,
		NewCustomerOnly: true,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	// First visit qualifies.
	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 1 {
		t.Fatalf("new customer did not qualify")
	}

	// Settle twice; the customer stops being new.
	for i := 0; i < 2; i++ {
		if _, err := engine.Settle(ctx, loyalty.SettleRequest{
			CustomerID: c.ID,
			StoreID:    "store-1",
			Amount:     types.USD(10000),
			Actor:      cashier("store-1"),
		}); err != nil {
			t.Fatalf("Settle %d failed: %v", i, err)
		}
	}

	q, err = engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("repeat customer still matched a new-customer-only rule")
	}
}

func TestQuoteMinVisits(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551110000")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:              "loyal customer 10%",
		Type:              discount.TypePercentage,
		PercentBP:         1000,
		MinVisitsRequired: 2,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("rule matched before the visit floor")
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.Settle(ctx, loyalty.SettleRequest{
			CustomerID: c.ID,
			StoreID:    "store-1",
			Amount:     types.USD(5000),
			Actor:      cashier("store-1"),
		}); err != nil {
			t.Fatalf("Settle %d failed: %v", i, err)
		}
	}

	q, err = engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 1 {
		t.Errorf("rule did not match after reaching the visit floor")
	}
}

func TestQuotePerCustomerCap(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551112222")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:               "once per customer",
		Type:               discount.TypePercentage,
		PercentBP:          1000,
		MaxUsesPerCustomer: 1,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(10000),
		Actor:      cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if len(res.Quote.Discounts) != 1 {
		t.Fatalf("first settlement did not apply the rule")
	}

	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("rule matched past its per-customer cap")
	}
}

func TestQuoteGlobalCap(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	a := registerCustomer(t, engine, "+15551113333")
	b := registerCustomer(t, engine, "+15551114444")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:         "first come first served",
		Type:         discount.TypePercentage,
		PercentBP:    1000,
		MaxTotalUses: 1,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: a.ID,
		StoreID:    "store-1",
		Amount:     types.USD(10000),
		Actor:      cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if len(res.Quote.Discounts) != 1 {
		t.Fatalf("first settlement did not consume the rule")
	}

	q, err := engine.QuoteDiscounts(ctx, b.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("exhausted rule still matched for another customer")
	}
}

func TestSettle(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551115555")

	_, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:              "10% over $500",
		Type:              discount.TypePercentage,
		PercentBP:         1000,
		MinPurchaseAmount: types.USD(50000),
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID:    c.ID,
		StoreID:       "store-1",
		Amount:        types.USD(60000),
		ItemsCount:    3,
		ReceiptNumber: "R-1001",
		Actor:         cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	p := res.Purchase
	if !p.OriginalAmount.Equal(types.USD(60000)) {
		t.Errorf("original amount: got %v", p.OriginalAmount)
	}
	if !p.DiscountApplied.Equal(types.USD(6000)) {
		t.Errorf("discount applied: got %v, want %v", p.DiscountApplied, types.USD(6000))
	}
	if !p.Amount.Equal(types.USD(54000)) {
		t.Errorf("paid amount: got %v, want %v", p.Amount, types.USD(54000))
	}
	if !p.BonusesEarned.Equal(types.USD(540)) {
		t.Errorf("bonuses earned: got %v, want %v", p.BonusesEarned, types.USD(540))
	}

	// Customer counters moved.
	got, err := engine.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.TotalVisits != 1 {
		t.Errorf("total visits: got %d, want 1", got.TotalVisits)
	}
	if !got.TotalPurchases.Equal(types.USD(60000)) {
		t.Errorf("total purchases: got %v, want %v", got.TotalPurchases, types.USD(60000))
	}
	if got.LastVisit == nil {
		t.Error("last visit not set")
	}

	// Earned bonuses landed on the balance.
	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !b.Current.Equal(types.USD(540)) {
		t.Errorf("balance: got %v, want %v", b.Current, types.USD(540))
	}

	// Application recorded and rule use counted.
	apps, err := engine.PurchaseApplications(ctx, p.ID)
	if err != nil {
		t.Fatalf("PurchaseApplications failed: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
	if !apps[0].DiscountAmount.Equal(types.USD(6000)) {
		t.Errorf("application discount: got %v", apps[0].DiscountAmount)
	}

	history, err := engine.PurchaseHistory(ctx, c.ID, purchase.ListOpts{})
	if err != nil {
		t.Fatalf("PurchaseHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != p.ID {
		t.Errorf("history mismatch: %+v", history)
	}
}

func TestSettleRedeemsBonuses(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551116666")

	if _, err := engine.CreditBonuses(ctx, c.ID, types.USD(2000), "seed"); err != nil {
		t.Fatalf("CreditBonuses failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID:      c.ID,
		StoreID:         "store-1",
		Amount:          types.USD(10000),
		BonusesToRedeem: types.USD(1500),
		Actor:           cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if res.RedemptionDegraded {
		t.Error("redemption unexpectedly degraded")
	}
	if !res.Purchase.BonusesUsed.Equal(types.USD(1500)) {
		t.Errorf("bonuses used: got %v, want %v", res.Purchase.BonusesUsed, types.USD(1500))
	}
	// $100.00 purchase minus $15.00 redeemed, plus 1% earned on the
	// post-discount amount.
	if !res.Purchase.Amount.Equal(types.USD(8500)) {
		t.Errorf("paid amount: got %v, want %v", res.Purchase.Amount, types.USD(8500))
	}

	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	// 2000 - 1500 + 100 earned (1% of 10000).
	if !b.Current.Equal(types.USD(600)) {
		t.Errorf("balance: got %v, want %v", b.Current, types.USD(600))
	}
}

func TestSettleRedemptionDegradesOnShortBalance(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551117777")

	if _, err := engine.CreditBonuses(ctx, c.ID, types.USD(100), "seed"); err != nil {
		t.Fatalf("CreditBonuses failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID:      c.ID,
		StoreID:         "store-1",
		Amount:          types.USD(10000),
		BonusesToRedeem: types.USD(5000),
		Actor:           cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.RedemptionDegraded {
		t.Error("expected degraded redemption")
	}
	if !res.Purchase.BonusesUsed.IsZero() {
		t.Errorf("bonuses used: got %v, want zero", res.Purchase.BonusesUsed)
	}
	// The sale settles at full price.
	if !res.Purchase.Amount.Equal(types.USD(10000)) {
		t.Errorf("paid amount: got %v, want %v", res.Purchase.Amount, types.USD(10000))
	}

	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	// Seed untouched, plus 1% earned.
	if !b.Current.Equal(types.USD(200)) {
		t.Errorf("balance: got %v, want %v", b.Current, types.USD(200))
	}
}

func TestSettleRecordsPerRuleApplications(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551119990")

	mustRule := func(in loyalty.CreateRuleInput) {
		t.Helper()
		if _, err := engine.CreateRule(ctx, in); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", in.Name, err)
		}
	}
	mustRule(loyalty.CreateRuleInput{Name: "10% storewide", Type: discount.TypePercentage, PercentBP: 1000})
	mustRule(loyalty.CreateRuleInput{Name: "$2 off", Type: discount.TypeFixedAmount, Amount: types.USD(200)})

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(2000),
		Actor:      cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.Purchase.Amount.Equal(types.USD(1600)) {
		t.Fatalf("paid amount: got %v, want %v", res.Purchase.Amount, types.USD(1600))
	}

	apps, err := engine.PurchaseApplications(ctx, res.Purchase.ID)
	if err != nil {
		t.Fatalf("PurchaseApplications failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}
	// Each record accounts for its own rule in isolation, not the
	// stacked total.
	for _, app := range apps {
		if !app.OriginalAmount.Equal(types.USD(2000)) {
			t.Errorf("original amount: got %v, want %v", app.OriginalAmount, types.USD(2000))
		}
		if !app.DiscountAmount.Equal(types.USD(200)) {
			t.Errorf("discount amount: got %v, want %v", app.DiscountAmount, types.USD(200))
		}
		if want := app.OriginalAmount.Subtract(app.DiscountAmount); !app.FinalAmount.Equal(want) {
			t.Errorf("final amount: got %v, want %v", app.FinalAmount, want)
		}
	}
}

func TestSettleOpensBalanceForImportedCustomer(t *testing.T) {
	s := memory.New()
	engine := loyalty.New(s,
		loyalty.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		loyalty.WithCurrency("usd"),
	)
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := engine.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})

	// An imported customer may predate registration-time balances.
	c := &customer.Customer{
		Entity:         types.NewEntity(),
		ID:             id.NewCustomerID(),
		Phone:          "+15551119991",
		FirstName:      "Imported",
		Status:         customer.StatusActive,
		RegisteredAt:   time.Now().UTC(),
		TotalPurchases: types.Zero("usd"),
	}
	if err := s.CreateCustomer(ctx, c); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID:      c.ID,
		StoreID:         "store-1",
		Amount:          types.USD(10000),
		BonusesToRedeem: types.USD(500),
		Actor:           cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	// Nothing to redeem against, so the redemption degrades and the
	// sale settles at full price.
	if !res.RedemptionDegraded {
		t.Error("expected degraded redemption")
	}
	if !res.Purchase.Amount.Equal(types.USD(10000)) {
		t.Errorf("paid amount: got %v, want %v", res.Purchase.Amount, types.USD(10000))
	}

	// The settlement opened a balance and credited the earn.
	b, err := engine.Balance(ctx, c.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !b.Current.Equal(types.USD(100)) {
		t.Errorf("balance: got %v, want %v", b.Current, types.USD(100))
	}
}

type captureSender struct {
	mu   sync.Mutex
	sent []*notification.Notification
}

func (s *captureSender) Send(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestSettleNotifiesOnlyWhenBonusesEarned(t *testing.T) {
	sender := &captureSender{}
	engine := loyalty.New(memory.New(),
		loyalty.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		loyalty.WithCurrency("usd"),
		loyalty.WithSender(sender),
	)
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c := registerCustomer(t, engine, "+15551119992")

	// A plain purchase earns bonuses and notifies.
	if _, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(10000),
		Actor:      cashier("store-1"),
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	// A fully comped purchase earns nothing, so nothing is sent.
	if _, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:   "full comp",
		Type:   discount.TypeFixedAmount,
		Amount: types.USD(20000),
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	res, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(3000),
		Actor:      cashier("store-1"),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !res.Purchase.BonusesEarned.IsZero() {
		t.Fatalf("bonuses earned: got %v, want zero", res.Purchase.BonusesEarned)
	}

	// Stop drains the dispatch queue before we count.
	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if n := sender.count(); n != 1 {
		t.Errorf("notifications sent: got %d, want 1", n)
	}
}

func TestSettleAuthorization(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551118888")

	// Wrong store is rejected before anything is touched.
	_, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-2",
		Amount:     types.USD(1000),
		Actor:      cashier("store-1"),
	})
	if !errors.Is(err, loyalty.ErrStoreMismatch) {
		t.Fatalf("expected ErrStoreMismatch, got %v", err)
	}

	got, err := engine.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.TotalVisits != 0 {
		t.Errorf("rejected settlement moved counters: visits %d", got.TotalVisits)
	}

	// A superuser can settle for any store.
	_, err = engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-2",
		Amount:     types.USD(1000),
		Actor:      loyalty.Actor{CashierID: "admin-1", Superuser: true},
	})
	if err != nil {
		t.Fatalf("superuser Settle failed: %v", err)
	}
}

func TestSettleRejectsDuplicateReceipt(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15551119999")

	req := loyalty.SettleRequest{
		CustomerID:    c.ID,
		StoreID:       "store-1",
		Amount:        types.USD(5000),
		ReceiptNumber: "R-2002",
		Actor:         cashier("store-1"),
	}
	if _, err := engine.Settle(ctx, req); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	_, err := engine.Settle(ctx, req)
	if !errors.Is(err, loyalty.ErrDuplicateReceipt) {
		t.Fatalf("expected ErrDuplicateReceipt, got %v", err)
	}

	// Only the first settlement counted.
	got, err := engine.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.TotalVisits != 1 {
		t.Errorf("duplicate receipt moved counters: visits %d", got.TotalVisits)
	}
}

func TestSettleRejectsInactiveCustomer(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15552220000")

	inactive := customer.StatusInactive
	if _, err := engine.UpdateCustomer(ctx, c.ID, loyalty.UpdateCustomerInput{Status: &inactive}); err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}

	_, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(1000),
		Actor:      cashier("store-1"),
	})
	if !errors.Is(err, loyalty.ErrCustomerInactive) {
		t.Fatalf("expected ErrCustomerInactive, got %v", err)
	}
}

func TestSettleValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	c := registerCustomer(t, engine, "+15552221111")

	_, err := engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		StoreID:    "store-1",
		Amount:     types.USD(0),
		Actor:      cashier("store-1"),
	})
	if !errors.Is(err, loyalty.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero amount, got %v", err)
	}

	_, err = engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID: c.ID,
		Amount:     types.USD(1000),
		Actor:      loyalty.Actor{Superuser: true},
	})
	var verr *loyalty.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for missing store, got %v", err)
	}

	_, err = engine.Settle(ctx, loyalty.SettleRequest{
		CustomerID:      c.ID,
		StoreID:         "store-1",
		Amount:          types.USD(1000),
		BonusesToRedeem: types.USD(-1),
		Actor:           cashier("store-1"),
	})
	if !errors.Is(err, loyalty.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative redemption, got %v", err)
	}
}

func TestRuleStatusNormalization(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-48 * time.Hour)
	expired := time.Now().UTC().Add(-24 * time.Hour)
	r, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:       "lapsed",
		Type:       discount.TypePercentage,
		PercentBP:  1000,
		ValidFrom:  &past,
		ValidUntil: &expired,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	got, err := engine.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.Status != discount.StatusExpired {
		t.Errorf("status: got %s, want %s", got.Status, discount.StatusExpired)
	}
}

func TestUpdateRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	r, err := engine.CreateRule(ctx, loyalty.CreateRuleInput{
		Name:      "seasonal 10%",
		Type:      discount.TypePercentage,
		PercentBP: 1000,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	inactive := discount.StatusInactive
	percentBP := int64(2000)
	updated, err := engine.UpdateRule(ctx, r.ID, loyalty.UpdateRuleInput{
		Status:    &inactive,
		PercentBP: &percentBP,
	})
	if err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if updated.Status != discount.StatusInactive || updated.PercentBP != 2000 {
		t.Errorf("update not applied: %+v", updated)
	}

	// Inactive rules never match.
	c := registerCustomer(t, engine, "+15552223333")
	q, err := engine.QuoteDiscounts(ctx, c.ID, "store-1", types.USD(10000))
	if err != nil {
		t.Fatalf("QuoteDiscounts failed: %v", err)
	}
	if len(q.Discounts) != 0 {
		t.Errorf("inactive rule matched")
	}
}

func TestCreateRuleValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input loyalty.CreateRuleInput
	}{
		{"missing name", loyalty.CreateRuleInput{Type: discount.TypePercentage, PercentBP: 1000}},
		{"zero percent", loyalty.CreateRuleInput{Name: "x", Type: discount.TypePercentage}},
		{"percent over 100", loyalty.CreateRuleInput{Name: "x", Type: discount.TypePercentage, PercentBP: 10001}},
		{"fixed without amount", loyalty.CreateRuleInput{Name: "x", Type: discount.TypeFixedAmount}},
		{"unknown type", loyalty.CreateRuleInput{Name: "x", Type: discount.Type("bogus")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.CreateRule(ctx, tt.input); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
