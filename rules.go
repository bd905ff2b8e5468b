package loyalty

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// CreateRuleInput holds the fields for creating a discount rule.
// PercentBP is in basis points: 1000 is 10%, 250 is 2.5%.
type CreateRuleInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        discount.Type `json:"type"`
	PercentBP   int64         `json:"percent_bp,omitempty"`
	Amount      types.Money   `json:"amount,omitempty"`

	MinPurchaseAmount types.Money `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount types.Money `json:"max_discount_amount,omitempty"`
	Stores            []string    `json:"stores,omitempty"`
	Segments          []string    `json:"segments,omitempty"`
	NewCustomerOnly   bool        `json:"new_customer_only,omitempty"`
	MinVisitsRequired int         `json:"min_visits_required,omitempty"`

	MaxUsesPerCustomer int `json:"max_uses_per_customer,omitempty"`
	MaxTotalUses       int `json:"max_total_uses,omitempty"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

func (in CreateRuleInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	switch in.Type {
	case discount.TypePercentage:
		if in.PercentBP <= 0 || in.PercentBP > 10000 {
			return &ValidationError{Field: "percent_bp", Message: "percent_bp must be between 1 and 10000 (100%)"}
		}
	case discount.TypeFixedAmount:
		if !in.Amount.IsPositive() {
			return &ValidationError{Field: "amount", Message: "amount must be positive"}
		}
	default:
		return &ValidationError{Field: "type", Message: "type must be percentage or fixed_amount"}
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return &ValidationError{Field: "valid_until", Message: "valid_until precedes valid_from"}
	}
	return nil
}

// CreateRule creates an active discount rule.
func (e *Engine) CreateRule(ctx context.Context, input CreateRuleInput) (*discount.Rule, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	r := &discount.Rule{
		Entity:             types.NewEntity(),
		ID:                 id.NewRuleID(),
		Name:               strings.TrimSpace(input.Name),
		Description:        input.Description,
		Type:               input.Type,
		PercentBP:          input.PercentBP,
		Amount:             input.Amount,
		Status:             discount.StatusActive,
		MinPurchaseAmount:  input.MinPurchaseAmount,
		MaxDiscountAmount:  input.MaxDiscountAmount,
		Stores:             input.Stores,
		Segments:           input.Segments,
		NewCustomerOnly:    input.NewCustomerOnly,
		MinVisitsRequired:  input.MinVisitsRequired,
		MaxUsesPerCustomer: input.MaxUsesPerCustomer,
		MaxTotalUses:       input.MaxTotalUses,
		ValidFrom:          input.ValidFrom,
		ValidUntil:         input.ValidUntil,
	}

	if err := e.store.CreateRule(ctx, r); err != nil {
		return nil, err
	}

	e.plugins.EmitRuleCreated(ctx, r)
	e.logger.Info("discount rule created",
		"rule_id", r.ID.String(),
		"name", r.Name,
		"type", string(r.Type),
	)

	return r, nil
}

// GetRule retrieves a rule by ID.
func (e *Engine) GetRule(ctx context.Context, ruleID id.RuleID) (*discount.Rule, error) {
	r, err := e.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	normalizeRuleStatus(r, time.Now().UTC())
	return r, nil
}

// ListRules lists discount rules.
func (e *Engine) ListRules(ctx context.Context, opts discount.ListOpts) ([]*discount.Rule, error) {
	rules, err := e.store.ListRules(ctx, opts)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, r := range rules {
		normalizeRuleStatus(r, now)
	}
	return rules, nil
}

// normalizeRuleStatus surfaces an elapsed validity window as an expired
// status on reads. Persisted status is left alone; the matcher checks
// the window itself.
func normalizeRuleStatus(r *discount.Rule, now time.Time) {
	if r.Status == discount.StatusActive && r.ValidUntil != nil && now.After(*r.ValidUntil) {
		r.Status = discount.StatusExpired
	}
}

// UpdateRuleInput holds the mutable rule fields. Nil fields are left
// unchanged.
type UpdateRuleInput struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *discount.Status `json:"status,omitempty"`
	PercentBP   *int64           `json:"percent_bp,omitempty"`
	Amount      *types.Money     `json:"amount,omitempty"`

	MinPurchaseAmount *types.Money `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount *types.Money `json:"max_discount_amount,omitempty"`
	Stores            []string     `json:"stores,omitempty"`
	Segments          []string     `json:"segments,omitempty"`
	NewCustomerOnly   *bool        `json:"new_customer_only,omitempty"`
	MinVisitsRequired *int         `json:"min_visits_required,omitempty"`

	MaxUsesPerCustomer *int `json:"max_uses_per_customer,omitempty"`
	MaxTotalUses       *int `json:"max_total_uses,omitempty"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// UpdateRule applies a partial update to a rule.
func (e *Engine) UpdateRule(ctx context.Context, ruleID id.RuleID, input UpdateRuleInput) (*discount.Rule, error) {
	r, err := e.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	before := *r

	if input.Name != nil {
		r.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		r.Description = *input.Description
	}
	if input.Status != nil {
		r.Status = *input.Status
	}
	if input.PercentBP != nil {
		r.PercentBP = *input.PercentBP
	}
	if input.Amount != nil {
		r.Amount = *input.Amount
	}
	if input.MinPurchaseAmount != nil {
		r.MinPurchaseAmount = *input.MinPurchaseAmount
	}
	if input.MaxDiscountAmount != nil {
		r.MaxDiscountAmount = *input.MaxDiscountAmount
	}
	if input.Stores != nil {
		r.Stores = input.Stores
	}
	if input.Segments != nil {
		r.Segments = input.Segments
	}
	if input.NewCustomerOnly != nil {
		r.NewCustomerOnly = *input.NewCustomerOnly
	}
	if input.MinVisitsRequired != nil {
		r.MinVisitsRequired = *input.MinVisitsRequired
	}
	if input.MaxUsesPerCustomer != nil {
		r.MaxUsesPerCustomer = *input.MaxUsesPerCustomer
	}
	if input.MaxTotalUses != nil {
		r.MaxTotalUses = *input.MaxTotalUses
	}
	if input.ValidFrom != nil {
		r.ValidFrom = input.ValidFrom
	}
	if input.ValidUntil != nil {
		r.ValidUntil = input.ValidUntil
	}

	r.Touch()
	if err := e.store.UpdateRule(ctx, r); err != nil {
		return nil, err
	}

	e.plugins.EmitRuleUpdated(ctx, &before, r)

	return r, nil
}
