// Package discount defines discount rules, their application records,
// and the quote produced by evaluating the active rule set against a
// purchase.
package discount

import (
	"time"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Type determines how a rule's value is interpreted.
type Type string

const (
	// TypePercentage discounts a fraction of the purchase amount,
	// expressed in basis points (250 = 2.5%).
	TypePercentage Type = "percentage"
	// TypeFixedAmount discounts a fixed monetary amount.
	TypeFixedAmount Type = "fixed_amount"
)

// Status is the lifecycle status of a discount rule.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Rule is an eligibility + effect pair maintained by administrators.
// CurrentUses counts successful applications and never exceeds
// MaxTotalUses once that cap is set.
type Rule struct {
	types.Entity
	ID          id.RuleID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        Type        `json:"type"`
	PercentBP   int64       `json:"percent_bp,omitempty"`
	Amount      types.Money `json:"amount,omitempty"`
	Status      Status      `json:"status"`

	// Eligibility constraints. Zero values mean unconstrained.
	MinPurchaseAmount types.Money `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount types.Money `json:"max_discount_amount,omitempty"`
	Stores            []string    `json:"stores,omitempty"`
	Segments          []string    `json:"segments,omitempty"`
	NewCustomerOnly   bool        `json:"new_customer_only,omitempty"`
	MinVisitsRequired int         `json:"min_visits_required,omitempty"`

	// Usage caps.
	MaxUsesPerCustomer int `json:"max_uses_per_customer,omitempty"`
	MaxTotalUses       int `json:"max_total_uses,omitempty"`
	CurrentUses        int `json:"current_uses"`

	// Validity window. Either bound may be open.
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// ValidAt reports whether the rule's validity window contains t.
func (r *Rule) ValidAt(t time.Time) bool {
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && t.After(*r.ValidUntil) {
		return false
	}
	return true
}

// AppliesToStore reports whether the rule is unrestricted by store or
// includes storeID in its applicable set.
func (r *Rule) AppliesToStore(storeID string) bool {
	if len(r.Stores) == 0 {
		return true
	}
	for _, s := range r.Stores {
		if s == storeID {
			return true
		}
	}
	return false
}

// Exhausted reports whether the rule's global use cap has been reached.
func (r *Rule) Exhausted() bool {
	return r.MaxTotalUses > 0 && r.CurrentUses >= r.MaxTotalUses
}

// DiscountFor computes the discount the rule grants on a purchase
// amount: percentage rules take their basis points of the amount
// (half-up to the smallest unit), fixed rules their amount. The result
// is clamped to MaxDiscountAmount when set, then to the purchase amount
// itself — a rule can never discount more than the purchase.
func (r *Rule) DiscountFor(amount types.Money) types.Money {
	var d types.Money
	switch r.Type {
	case TypePercentage:
		d = amount.BasisPoints(r.PercentBP)
	case TypeFixedAmount:
		d = types.New(r.Amount.Amount, amount.Currency)
	default:
		return types.Zero(amount.Currency)
	}

	if r.MaxDiscountAmount.IsPositive() {
		d = d.Min(types.New(r.MaxDiscountAmount.Amount, amount.Currency))
	}
	return d.Min(amount)
}

// Application is an immutable record of one rule applied to one
// purchase. FinalAmount == OriginalAmount - DiscountAmount.
type Application struct {
	ID             id.ApplicationID `json:"id"`
	RuleID         id.RuleID        `json:"rule_id"`
	PurchaseID     id.PurchaseID    `json:"purchase_id"`
	CustomerID     id.CustomerID    `json:"customer_id"`
	OriginalAmount types.Money      `json:"original_amount"`
	DiscountAmount types.Money      `json:"discount_amount"`
	FinalAmount    types.Money      `json:"final_amount"`
	AppliedAt      time.Time        `json:"applied_at"`
}

// AppliedDiscount is one rule's contribution within a quote.
type AppliedDiscount struct {
	RuleID   id.RuleID   `json:"rule_id"`
	RuleName string      `json:"rule_name"`
	Type     Type        `json:"type"`
	Amount   types.Money `json:"amount"`
}

// Quote is the result of evaluating the active rule set against a
// purchase without committing any state change. All qualifying
// discounts stack additively; TotalDiscount never exceeds the purchase
// amount and FinalAmount never goes negative.
type Quote struct {
	CustomerID    id.CustomerID     `json:"customer_id"`
	StoreID       string            `json:"store_id"`
	Amount        types.Money       `json:"amount"`
	Discounts     []AppliedDiscount `json:"discounts"`
	TotalDiscount types.Money       `json:"total_discount"`
	FinalAmount   types.Money       `json:"final_amount"`
	BonusesEarned types.Money       `json:"bonuses_earned"`
	QuotedAt      time.Time         `json:"quoted_at"`
}
