package discount

import (
	"context"
	"time"

	"github.com/xraph/loyalty/id"
)

type Store interface {
	CreateRule(ctx context.Context, r *Rule) error
	GetRule(ctx context.Context, ruleID id.RuleID) (*Rule, error)
	ListRules(ctx context.Context, opts ListOpts) ([]*Rule, error)
	// ListActiveRules returns active rules whose validity window
	// contains asOf and whose store set is unrestricted or contains
	// storeID, ordered by ID for stable evaluation.
	ListActiveRules(ctx context.Context, storeID string, asOf time.Time) ([]*Rule, error)
	UpdateRule(ctx context.Context, r *Rule) error
	// IncrementRuleUses bumps CurrentUses by one atomically.
	IncrementRuleUses(ctx context.Context, ruleID id.RuleID) error

	CreateApplication(ctx context.Context, a *Application) error
	// CountApplications returns how many times a customer has used a rule.
	CountApplications(ctx context.Context, ruleID id.RuleID, customerID id.CustomerID) (int, error)
	ListApplications(ctx context.Context, purchaseID id.PurchaseID) ([]*Application, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
