package bonus

import (
	"testing"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

func TestNewBalance(t *testing.T) {
	custID := id.NewCustomerID()
	b := NewBalance(custID, "usd")

	if b.ID.IsNil() {
		t.Fatal("expected non-nil balance ID")
	}
	if b.CustomerID != custID {
		t.Errorf("customer ID: got %s, want %s", b.CustomerID, custID)
	}
	if !b.Current.IsZero() || !b.TotalEarned.IsZero() || !b.TotalSpent.IsZero() {
		t.Errorf("expected all-zero balance, got %+v", b)
	}
	if b.Current.Currency != "usd" {
		t.Errorf("currency: got %s, want usd", b.Current.Currency)
	}
}

func TestApplyEarned(t *testing.T) {
	b := NewBalance(id.NewCustomerID(), "usd")
	purID := id.NewPurchaseID()

	txn := b.Apply(TransactionEarned, types.USD(540), purID, "purchase bonus")

	if !b.Current.Equal(types.USD(540)) {
		t.Errorf("current: got %v, want %v", b.Current, types.USD(540))
	}
	if !b.TotalEarned.Equal(types.USD(540)) {
		t.Errorf("total earned: got %v, want %v", b.TotalEarned, types.USD(540))
	}
	if !b.TotalSpent.IsZero() {
		t.Errorf("total spent: got %v, want zero", b.TotalSpent)
	}

	if txn.Type != TransactionEarned {
		t.Errorf("type: got %s, want %s", txn.Type, TransactionEarned)
	}
	if !txn.BalanceBefore.IsZero() {
		t.Errorf("balance before: got %v, want zero", txn.BalanceBefore)
	}
	if !txn.BalanceAfter.Equal(types.USD(540)) {
		t.Errorf("balance after: got %v, want %v", txn.BalanceAfter, types.USD(540))
	}
	if txn.PurchaseID != purID {
		t.Errorf("purchase ID: got %s, want %s", txn.PurchaseID, purID)
	}
	if txn.CustomerID != b.CustomerID {
		t.Errorf("customer ID: got %s, want %s", txn.CustomerID, b.CustomerID)
	}
}

func TestApplySpent(t *testing.T) {
	b := NewBalance(id.NewCustomerID(), "usd")
	b.Apply(TransactionEarned, types.USD(1000), id.PurchaseID{}, "seed")

	txn := b.Apply(TransactionSpent, types.USD(300), id.PurchaseID{}, "redemption")

	if !b.Current.Equal(types.USD(700)) {
		t.Errorf("current: got %v, want %v", b.Current, types.USD(700))
	}
	if !b.TotalEarned.Equal(types.USD(1000)) {
		t.Errorf("total earned: got %v, want %v", b.TotalEarned, types.USD(1000))
	}
	if !b.TotalSpent.Equal(types.USD(300)) {
		t.Errorf("total spent: got %v, want %v", b.TotalSpent, types.USD(300))
	}
	if !txn.BalanceBefore.Equal(types.USD(1000)) || !txn.BalanceAfter.Equal(types.USD(700)) {
		t.Errorf("audit trail: before %v after %v", txn.BalanceBefore, txn.BalanceAfter)
	}
}

func TestApplyMaintainsInvariant(t *testing.T) {
	b := NewBalance(id.NewCustomerID(), "usd")

	b.Apply(TransactionEarned, types.USD(1000), id.PurchaseID{}, "")
	b.Apply(TransactionSpent, types.USD(400), id.PurchaseID{}, "")
	b.Apply(TransactionEarned, types.USD(250), id.PurchaseID{}, "")
	b.Apply(TransactionExpired, types.USD(100), id.PurchaseID{}, "")

	want := b.TotalEarned.Subtract(b.TotalSpent)
	if !b.Current.Equal(want) {
		t.Errorf("invariant violated: current %v, earned - spent %v", b.Current, want)
	}
}

func TestEarned(t *testing.T) {
	tests := []struct {
		name     string
		final    types.Money
		rateBP   int64
		expected types.Money
	}{
		{"1% of $540.00", types.USD(54000), 100, types.USD(540)},
		{"1% of $149.90 rounds half-up", types.USD(14990), 100, types.USD(150)},
		{"1% of $0.49 rounds down", types.USD(49), 100, types.USD(0)},
		{"1% of $0.50 rounds up", types.USD(50), 100, types.USD(1)},
		{"2.5% rate", types.USD(10000), 250, types.USD(250)},
		{"zero amount earns nothing", types.USD(0), 100, types.USD(0)},
		{"negative amount earns nothing", types.USD(-100), 100, types.USD(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Earned(tt.final, tt.rateBP)
			if !got.Equal(tt.expected) {
				t.Errorf("Earned(%v, %d): got %v, want %v", tt.final, tt.rateBP, got, tt.expected)
			}
		})
	}
}
