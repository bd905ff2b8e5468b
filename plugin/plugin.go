// Package plugin provides an extensible plugin system for Loyalty.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Customer lifecycle hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered is called when a new customer is registered.
type OnCustomerRegistered interface {
	Plugin
	OnCustomerRegistered(ctx context.Context, cust interface{}) error
}

// OnCustomerUpdated is called when a customer profile changes.
type OnCustomerUpdated interface {
	Plugin
	OnCustomerUpdated(ctx context.Context, oldCust, newCust interface{}) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnPurchaseSettled is called after a purchase settlement commits.
type OnPurchaseSettled interface {
	Plugin
	OnPurchaseSettled(ctx context.Context, pur interface{}) error
}

// OnQuoteComputed is called when a discount quote is computed.
type OnQuoteComputed interface {
	Plugin
	OnQuoteComputed(ctx context.Context, quote interface{}) error
}

// OnRedemptionDegraded is called when a requested bonus redemption
// exceeded the available balance and the settlement proceeded with
// zero bonuses used.
type OnRedemptionDegraded interface {
	Plugin
	OnRedemptionDegraded(ctx context.Context, customerID string, requested, available int64) error
}

// ──────────────────────────────────────────────────
// Bonus ledger hooks
// ──────────────────────────────────────────────────

// OnBonusesCredited is called when bonus points are credited.
type OnBonusesCredited interface {
	Plugin
	OnBonusesCredited(ctx context.Context, txn interface{}) error
}

// OnBonusesDebited is called when bonus points are debited.
type OnBonusesDebited interface {
	Plugin
	OnBonusesDebited(ctx context.Context, txn interface{}) error
}

// ──────────────────────────────────────────────────
// Discount rule hooks
// ──────────────────────────────────────────────────

// OnRuleCreated is called when a new discount rule is created.
type OnRuleCreated interface {
	Plugin
	OnRuleCreated(ctx context.Context, rule interface{}) error
}

// OnRuleUpdated is called when a discount rule is updated.
type OnRuleUpdated interface {
	Plugin
	OnRuleUpdated(ctx context.Context, oldRule, newRule interface{}) error
}

// OnRuleExhausted is called when a rule is skipped during matching
// because its global use cap has been reached.
type OnRuleExhausted interface {
	Plugin
	OnRuleExhausted(ctx context.Context, ruleID string, uses, cap int) error
}

// ──────────────────────────────────────────────────
// Notification hooks
// ──────────────────────────────────────────────────

// OnNotificationSent is called when a notification is delivered.
type OnNotificationSent interface {
	Plugin
	OnNotificationSent(ctx context.Context, n interface{}) error
}

// OnNotificationFailed is called when notification delivery fails.
type OnNotificationFailed interface {
	Plugin
	OnNotificationFailed(ctx context.Context, n interface{}, err error) error
}
