package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/purchase"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/types"
)

func newCustomer(phone string) *customer.Customer {
	return &customer.Customer{
		Entity:         types.NewEntity(),
		ID:             id.NewCustomerID(),
		Phone:          phone,
		FirstName:      "Test",
		Status:         customer.StatusActive,
		RegisteredAt:   time.Now().UTC(),
		TotalPurchases: types.Zero("usd"),
	}
}

func TestCustomerCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := newCustomer("+15550000001")
	if err := s.CreateCustomer(ctx, c); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	// Duplicate phone rejected.
	if err := s.CreateCustomer(ctx, newCustomer("+15550000001")); err == nil {
		t.Error("expected error for duplicate phone")
	}

	got, err := s.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.Phone != c.Phone {
		t.Errorf("phone: got %s, want %s", got.Phone, c.Phone)
	}

	// Reads return copies; mutating them must not leak back.
	got.FirstName = "Mutated"
	again, err := s.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if again.FirstName != "Test" {
		t.Error("store returned a shared reference, not a copy")
	}

	if _, err := s.GetCustomer(ctx, id.NewCustomerID()); err == nil {
		t.Error("expected not-found error")
	}
}

func TestRunInTxCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := newCustomer("+15550000002")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateCustomer(ctx, c); err != nil {
			return err
		}
		return tx.SaveBalance(ctx, bonus.NewBalance(c.ID, "usd"))
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	if _, err := s.GetCustomer(ctx, c.ID); err != nil {
		t.Errorf("committed customer missing: %v", err)
	}
	if _, err := s.GetBalance(ctx, c.ID); err != nil {
		t.Errorf("committed balance missing: %v", err)
	}
}

func TestRunInTxRollback(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := newCustomer("+15550000003")
	if err := s.CreateCustomer(ctx, c); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if err := s.SaveBalance(ctx, bonus.NewBalance(c.ID, "usd")); err != nil {
		t.Fatalf("SaveBalance failed: %v", err)
	}

	r := &discount.Rule{
		Entity:    types.NewEntity(),
		ID:        id.NewRuleID(),
		Name:      "10%",
		Type:      discount.TypePercentage,
		PercentBP: 1000,
		Status:    discount.StatusActive,
	}
	if err := s.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		b, err := tx.GetBalanceForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		b.Apply(bonus.TransactionEarned, types.USD(500), id.PurchaseID{}, "")
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		// In-place counter mutation must also roll back.
		if err := tx.IncrementRuleUses(ctx, r.ID); err != nil {
			return err
		}
		if err := tx.CreateCustomer(ctx, newCustomer("+15550000004")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	b, err := s.GetBalance(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.Current.IsZero() {
		t.Errorf("balance mutation not rolled back: %v", b.Current)
	}

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.CurrentUses != 0 {
		t.Errorf("rule use increment not rolled back: %d", got.CurrentUses)
	}

	if _, err := s.GetCustomerByPhone(ctx, "+15550000004"); err == nil {
		t.Error("customer created inside rolled-back transaction survived")
	}
}

func TestIncrementRuleUses(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := &discount.Rule{
		Entity:    types.NewEntity(),
		ID:        id.NewRuleID(),
		Name:      "counted",
		Type:      discount.TypePercentage,
		PercentBP: 500,
		Status:    discount.StatusActive,
	}
	if err := s.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementRuleUses(ctx, r.ID); err != nil {
			t.Fatalf("IncrementRuleUses failed: %v", err)
		}
	}

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.CurrentUses != 3 {
		t.Errorf("current uses: got %d, want 3", got.CurrentUses)
	}
}

func TestListActiveRulesFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	mk := func(name string, status discount.Status, stores []string, until *time.Time) {
		t.Helper()
		r := &discount.Rule{
			Entity:     types.NewEntity(),
			ID:         id.NewRuleID(),
			Name:       name,
			Type:       discount.TypePercentage,
			PercentBP:  1000,
			Status:     status,
			Stores:     stores,
			ValidUntil: until,
		}
		if err := s.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", name, err)
		}
	}

	mk("active open", discount.StatusActive, nil, nil)
	mk("inactive", discount.StatusInactive, nil, nil)
	mk("expired", discount.StatusActive, nil, &past)
	mk("other store", discount.StatusActive, []string{"store-9"}, nil)
	mk("this store", discount.StatusActive, []string{"store-1"}, nil)

	rules, err := s.ListActiveRules(ctx, "store-1", now)
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 matching rules, got %d", len(rules))
	}
	for _, r := range rules {
		if r.Name != "active open" && r.Name != "this store" {
			t.Errorf("unexpected rule matched: %s", r.Name)
		}
	}
}

func TestGetPurchaseByReceipt(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := newCustomer("+15550000005")
	if err := s.CreateCustomer(ctx, c); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	p := &purchase.Purchase{
		ID:              id.NewPurchaseID(),
		CustomerID:      c.ID,
		StoreID:         "store-1",
		PurchasedAt:     time.Now().UTC(),
		OriginalAmount:  types.USD(5000),
		Amount:          types.USD(5000),
		DiscountApplied: types.USD(0),
		BonusesUsed:     types.USD(0),
		BonusesEarned:   types.USD(50),
		ReceiptNumber:   "R-42",
	}
	if err := s.CreatePurchase(ctx, p); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	got, err := s.GetPurchaseByReceipt(ctx, "R-42")
	if err != nil {
		t.Fatalf("GetPurchaseByReceipt failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("receipt lookup mismatch: got %s, want %s", got.ID, p.ID)
	}

	if _, err := s.GetPurchaseByReceipt(ctx, "R-404"); err == nil {
		t.Error("expected not-found for unknown receipt")
	}
}
