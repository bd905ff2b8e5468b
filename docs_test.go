package loyalty_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		l := loyalty.New(store,
			loyalty.WithLogger(slog.Default()),
			loyalty.WithCurrency("usd"),
		)

		// Start the engine
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		// Register a customer
		cust, err := l.RegisterCustomer(ctx, loyalty.RegisterCustomerInput{
			Phone:     "+15550123",
			FirstName: "Dana",
		})
		if err != nil {
			t.Fatal(err)
		}

		// Create a discount rule
		_, err = l.CreateRule(ctx, loyalty.CreateRuleInput{
			Name:              "10% off orders over $50",
			Type:              discount.TypePercentage,
			PercentBP:         1000,
			MinPurchaseAmount: types.USD(5000),
		})
		if err != nil {
			t.Fatal(err)
		}

		// Quote a checkout without committing anything
		quote, err := l.QuoteDiscounts(ctx, cust.ID, "store-7", types.USD(60000))
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("quoted discount: %s\n", quote.TotalDiscount.String())

		// Settle the purchase
		result, err := l.Settle(ctx, loyalty.SettleRequest{
			CustomerID: cust.ID,
			StoreID:    "store-7",
			Amount:     types.USD(60000),
			Actor:      loyalty.Actor{CashierID: "cash-3", StoreID: "store-7"},
		})
		if err != nil {
			t.Fatal(err)
		}

		log.Printf("settled for %s, earned %s\n",
			result.Purchase.Amount.String(), result.Purchase.BonusesEarned.String())
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.RUB(9900)   // 99.00 rub
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m1.Multiply(3)  // $3.00
		_ = m1.Percent(50)  // $0.50

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
