// Package observability provides a metrics extension for Loyalty that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/loyalty/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnCustomerRegistered = (*MetricsExtension)(nil)
	_ plugin.OnCustomerUpdated    = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseSettled    = (*MetricsExtension)(nil)
	_ plugin.OnQuoteComputed      = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionDegraded = (*MetricsExtension)(nil)
	_ plugin.OnBonusesCredited    = (*MetricsExtension)(nil)
	_ plugin.OnBonusesDebited     = (*MetricsExtension)(nil)
	_ plugin.OnRuleCreated        = (*MetricsExtension)(nil)
	_ plugin.OnRuleUpdated        = (*MetricsExtension)(nil)
	_ plugin.OnRuleExhausted      = (*MetricsExtension)(nil)
	_ plugin.OnNotificationSent   = (*MetricsExtension)(nil)
	_ plugin.OnNotificationFailed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Loyalty plugin to automatically track loyalty metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Customer metrics
	CustomerRegistered Counter
	CustomerUpdated    Counter

	// Settlement metrics
	PurchasesSettled    Counter
	QuotesComputed      Counter
	RedemptionsDegraded Counter

	// Bonus ledger metrics
	BonusesCredited Counter
	BonusesDebited  Counter

	// Discount rule metrics
	RuleCreated   Counter
	RuleUpdated   Counter
	RuleExhausted Counter

	// Notification metrics
	NotificationSent   Counter
	NotificationFailed Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Customer metrics
		CustomerRegistered: factory.Counter("loyalty.customer.registered"),
		CustomerUpdated:    factory.Counter("loyalty.customer.updated"),

		// Settlement metrics
		PurchasesSettled:    factory.Counter("loyalty.purchase.settled"),
		QuotesComputed:      factory.Counter("loyalty.quote.computed"),
		RedemptionsDegraded: factory.Counter("loyalty.redemption.degraded"),

		// Bonus ledger metrics
		BonusesCredited: factory.Counter("loyalty.bonuses.credited"),
		BonusesDebited:  factory.Counter("loyalty.bonuses.debited"),

		// Discount rule metrics
		RuleCreated:   factory.Counter("loyalty.rule.created"),
		RuleUpdated:   factory.Counter("loyalty.rule.updated"),
		RuleExhausted: factory.Counter("loyalty.rule.exhausted"),

		// Notification metrics
		NotificationSent:   factory.Counter("loyalty.notification.sent"),
		NotificationFailed: factory.Counter("loyalty.notification.failed"),

		// Error metrics
		StoreErrors:  factory.Counter("loyalty.store.errors"),
		PluginErrors: factory.Counter("loyalty.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Customer lifecycle hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (m *MetricsExtension) OnCustomerRegistered(_ context.Context, _ interface{}) error {
	m.CustomerRegistered.Inc()
	return nil
}

// OnCustomerUpdated implements plugin.OnCustomerUpdated.
func (m *MetricsExtension) OnCustomerUpdated(_ context.Context, _, _ interface{}) error {
	m.CustomerUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnPurchaseSettled implements plugin.OnPurchaseSettled.
func (m *MetricsExtension) OnPurchaseSettled(_ context.Context, _ interface{}) error {
	m.PurchasesSettled.Inc()
	return nil
}

// OnQuoteComputed implements plugin.OnQuoteComputed.
func (m *MetricsExtension) OnQuoteComputed(_ context.Context, _ interface{}) error {
	m.QuotesComputed.Inc()
	return nil
}

// OnRedemptionDegraded implements plugin.OnRedemptionDegraded.
func (m *MetricsExtension) OnRedemptionDegraded(_ context.Context, _ string, _, _ int64) error {
	m.RedemptionsDegraded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Bonus ledger hooks
// ──────────────────────────────────────────────────

// OnBonusesCredited implements plugin.OnBonusesCredited.
func (m *MetricsExtension) OnBonusesCredited(_ context.Context, _ interface{}) error {
	m.BonusesCredited.Inc()
	return nil
}

// OnBonusesDebited implements plugin.OnBonusesDebited.
func (m *MetricsExtension) OnBonusesDebited(_ context.Context, _ interface{}) error {
	m.BonusesDebited.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Discount rule hooks
// ──────────────────────────────────────────────────

// OnRuleCreated implements plugin.OnRuleCreated.
func (m *MetricsExtension) OnRuleCreated(_ context.Context, _ interface{}) error {
	m.RuleCreated.Inc()
	return nil
}

// OnRuleUpdated implements plugin.OnRuleUpdated.
func (m *MetricsExtension) OnRuleUpdated(_ context.Context, _, _ interface{}) error {
	m.RuleUpdated.Inc()
	return nil
}

// OnRuleExhausted implements plugin.OnRuleExhausted.
func (m *MetricsExtension) OnRuleExhausted(_ context.Context, _ string, _, _ int) error {
	m.RuleExhausted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Notification lifecycle hooks
// ──────────────────────────────────────────────────

// OnNotificationSent implements plugin.OnNotificationSent.
func (m *MetricsExtension) OnNotificationSent(_ context.Context, _ interface{}) error {
	m.NotificationSent.Inc()
	return nil
}

// OnNotificationFailed implements plugin.OnNotificationFailed.
func (m *MetricsExtension) OnNotificationFailed(_ context.Context, _ interface{}, _ error) error {
	m.NotificationFailed.Inc()
	return nil
}
