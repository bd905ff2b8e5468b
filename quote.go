package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/types"
)

// QuoteDiscounts evaluates the active rule set against a purchase and
// returns the quote without committing anything. Quoting the same
// purchase twice yields the same result as long as the rule set and the
// customer's counters have not moved.
func (e *Engine) QuoteDiscounts(ctx context.Context, customerID id.CustomerID, storeID string, amount types.Money) (*discount.Quote, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: purchase amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	c, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	q, err := e.quoteWith(ctx, e.store, c, storeID, amount, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	e.plugins.EmitQuoteComputed(ctx, q)

	return q, nil
}

// quoteWith computes a quote against the given store view, so that
// settlement can evaluate rules inside its own transaction and see a
// consistent snapshot.
func (e *Engine) quoteWith(ctx context.Context, s store.Store, c *customer.Customer, storeID string, amount types.Money, now time.Time) (*discount.Quote, error) {
	rules, err := s.ListActiveRules(ctx, storeID, now)
	if err != nil {
		return nil, err
	}

	q := &discount.Quote{
		CustomerID:    c.ID,
		StoreID:       storeID,
		Amount:        amount,
		TotalDiscount: types.Zero(amount.Currency),
		QuotedAt:      now,
	}

	for _, r := range rules {
		ok, err := e.ruleQualifies(ctx, s, r, c, amount)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		d := r.DiscountFor(amount)
		if !d.IsPositive() {
			continue
		}

		q.Discounts = append(q.Discounts, discount.AppliedDiscount{
			RuleID:   r.ID,
			RuleName: r.Name,
			Type:     r.Type,
			Amount:   d,
		})
		q.TotalDiscount = q.TotalDiscount.Add(d)
	}

	// Stacked discounts can exceed the purchase; the final amount
	// never goes below zero.
	q.TotalDiscount = q.TotalDiscount.Min(amount)
	q.FinalAmount = amount.Subtract(q.TotalDiscount).Max(types.Zero(amount.Currency))
	q.BonusesEarned = bonus.Earned(q.FinalAmount, e.earnRateBP)

	return q, nil
}

// ruleQualifies checks the per-customer eligibility predicates in
// order: purchase floor, new-customer gate, visit floor, per-customer
// cap, global cap. Status, validity window, and store scope were
// already filtered by ListActiveRules.
func (e *Engine) ruleQualifies(ctx context.Context, s store.Store, r *discount.Rule, c *customer.Customer, amount types.Money) (bool, error) {
	if r.MinPurchaseAmount.IsPositive() && amount.Amount < r.MinPurchaseAmount.Amount {
		return false, nil
	}

	if r.NewCustomerOnly && !c.IsNewCustomer() {
		return false, nil
	}

	if r.MinVisitsRequired > 0 && c.TotalVisits < r.MinVisitsRequired {
		return false, nil
	}

	if r.MaxUsesPerCustomer > 0 {
		used, err := s.CountApplications(ctx, r.ID, c.ID)
		if err != nil {
			return false, err
		}
		if used >= r.MaxUsesPerCustomer {
			return false, nil
		}
	}

	if r.Exhausted() {
		e.plugins.EmitRuleExhausted(ctx, r.ID.String(), r.CurrentUses, r.MaxTotalUses)
		return false, nil
	}

	return true, nil
}
