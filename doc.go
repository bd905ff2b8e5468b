// Package loyalty provides a composable retail loyalty engine for Go applications.
//
// Loyalty is designed as a library, not a service. Import it directly into your
// point-of-sale backend or admin tooling. It provides:
//
//   - A bonus point ledger with a full audit trail per movement
//   - Discount rules with store scoping, validity windows, and usage caps
//   - Side-effect-free discount quotes for checkout previews
//   - Transactional purchase settlement that quotes, redeems, and credits atomically
//   - Customer profiles with an append-only change history
//   - Best-effort customer notifications dispatched after commit
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/loyalty"
//	    "github.com/xraph/loyalty/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	l := loyalty.New(store)
//
//	// Start the engine (migrates the store, begins background workers)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Customers join the program keyed by phone number and get a bonus
// balance at registration:
//
//	cust, err := l.RegisterCustomer(ctx, loyalty.RegisterCustomerInput{
//	    Phone:     "+15550123",
//	    FirstName: "Dana",
//	})
//
// Discount rules pair eligibility constraints with an effect:
//
//	rule, err := l.CreateRule(ctx, loyalty.CreateRuleInput{
//	    Name:              "10% off orders over $50",
//	    Type:              discount.TypePercentage,
//	    PercentBP:         1000,
//	    MinPurchaseAmount: types.USD(5000),
//	})
//
// Quotes evaluate the rule set without committing anything:
//
//	quote, err := l.QuoteDiscounts(ctx, cust.ID, "store-7", types.USD(60000))
//
// Settlement commits the whole purchase in one transaction:
//
//	result, err := l.Settle(ctx, loyalty.SettleRequest{
//	    CustomerID: cust.ID,
//	    StoreID:    "store-7",
//	    Amount:     types.USD(60000),
//	    Actor:      loyalty.Actor{CashierID: "cash-3", StoreID: "store-7"},
//	})
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest currency
// unit (cents for USD, kopecks for RUB, etc); fractional results round
// half-up to the smallest unit.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	cust_01h2xcejqtf2nbrexx3vqjhp41  // Customer ID
//	rule_01h2xcejqtf2nbrexx3vqjhp41  // Discount rule ID
//	pur_01h455vb4pex5vsknk084sn02q   // Purchase ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package loyalty
