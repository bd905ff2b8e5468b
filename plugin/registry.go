package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onCustomerRegistered []OnCustomerRegistered
	onCustomerUpdated    []OnCustomerUpdated
	onPurchaseSettled    []OnPurchaseSettled
	onQuoteComputed      []OnQuoteComputed
	onRedemptionDegraded []OnRedemptionDegraded
	onBonusesCredited    []OnBonusesCredited
	onBonusesDebited     []OnBonusesDebited
	onRuleCreated        []OnRuleCreated
	onRuleUpdated        []OnRuleUpdated
	onRuleExhausted      []OnRuleExhausted
	onNotificationSent   []OnNotificationSent
	onNotificationFailed []OnNotificationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCustomerRegistered); ok {
		r.onCustomerRegistered = append(r.onCustomerRegistered, v)
	}
	if v, ok := p.(OnCustomerUpdated); ok {
		r.onCustomerUpdated = append(r.onCustomerUpdated, v)
	}
	if v, ok := p.(OnPurchaseSettled); ok {
		r.onPurchaseSettled = append(r.onPurchaseSettled, v)
	}
	if v, ok := p.(OnQuoteComputed); ok {
		r.onQuoteComputed = append(r.onQuoteComputed, v)
	}
	if v, ok := p.(OnRedemptionDegraded); ok {
		r.onRedemptionDegraded = append(r.onRedemptionDegraded, v)
	}
	if v, ok := p.(OnBonusesCredited); ok {
		r.onBonusesCredited = append(r.onBonusesCredited, v)
	}
	if v, ok := p.(OnBonusesDebited); ok {
		r.onBonusesDebited = append(r.onBonusesDebited, v)
	}
	if v, ok := p.(OnRuleCreated); ok {
		r.onRuleCreated = append(r.onRuleCreated, v)
	}
	if v, ok := p.(OnRuleUpdated); ok {
		r.onRuleUpdated = append(r.onRuleUpdated, v)
	}
	if v, ok := p.(OnRuleExhausted); ok {
		r.onRuleExhausted = append(r.onRuleExhausted, v)
	}
	if v, ok := p.(OnNotificationSent); ok {
		r.onNotificationSent = append(r.onNotificationSent, v)
	}
	if v, ok := p.(OnNotificationFailed); ok {
		r.onNotificationFailed = append(r.onNotificationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnCustomerRegistered)(nil)).Elem(), "OnCustomerRegistered")
	checkInterface(reflect.TypeOf((*OnPurchaseSettled)(nil)).Elem(), "OnPurchaseSettled")
	checkInterface(reflect.TypeOf((*OnQuoteComputed)(nil)).Elem(), "OnQuoteComputed")
	checkInterface(reflect.TypeOf((*OnRedemptionDegraded)(nil)).Elem(), "OnRedemptionDegraded")
	checkInterface(reflect.TypeOf((*OnBonusesCredited)(nil)).Elem(), "OnBonusesCredited")
	checkInterface(reflect.TypeOf((*OnBonusesDebited)(nil)).Elem(), "OnBonusesDebited")
	checkInterface(reflect.TypeOf((*OnRuleCreated)(nil)).Elem(), "OnRuleCreated")
	checkInterface(reflect.TypeOf((*OnRuleExhausted)(nil)).Elem(), "OnRuleExhausted")
	checkInterface(reflect.TypeOf((*OnNotificationSent)(nil)).Elem(), "OnNotificationSent")
	checkInterface(reflect.TypeOf((*OnNotificationFailed)(nil)).Elem(), "OnNotificationFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCustomerRegistered emits a customer registered event.
func (r *Registry) EmitCustomerRegistered(ctx context.Context, cust interface{}) {
	r.mu.RLock()
	plugins := r.onCustomerRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCustomerRegistered(ctx, cust)
		}); err != nil {
			r.logger.Warn("plugin OnCustomerRegistered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCustomerUpdated emits a customer updated event.
func (r *Registry) EmitCustomerUpdated(ctx context.Context, oldCust, newCust interface{}) {
	r.mu.RLock()
	plugins := r.onCustomerUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCustomerUpdated(ctx, oldCust, newCust)
		}); err != nil {
			r.logger.Warn("plugin OnCustomerUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseSettled emits a purchase settled event.
func (r *Registry) EmitPurchaseSettled(ctx context.Context, pur interface{}) {
	r.mu.RLock()
	plugins := r.onPurchaseSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseSettled(ctx, pur)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitQuoteComputed emits a quote computed event.
func (r *Registry) EmitQuoteComputed(ctx context.Context, quote interface{}) {
	r.mu.RLock()
	plugins := r.onQuoteComputed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuoteComputed(ctx, quote)
		}); err != nil {
			r.logger.Warn("plugin OnQuoteComputed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionDegraded emits a redemption degraded event.
func (r *Registry) EmitRedemptionDegraded(ctx context.Context, customerID string, requested, available int64) {
	r.mu.RLock()
	plugins := r.onRedemptionDegraded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionDegraded(ctx, customerID, requested, available)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionDegraded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBonusesCredited emits a bonuses credited event.
func (r *Registry) EmitBonusesCredited(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onBonusesCredited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBonusesCredited(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnBonusesCredited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBonusesDebited emits a bonuses debited event.
func (r *Registry) EmitBonusesDebited(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onBonusesDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBonusesDebited(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnBonusesDebited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRuleCreated emits a rule created event.
func (r *Registry) EmitRuleCreated(ctx context.Context, rule interface{}) {
	r.mu.RLock()
	plugins := r.onRuleCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRuleCreated(ctx, rule)
		}); err != nil {
			r.logger.Warn("plugin OnRuleCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRuleUpdated emits a rule updated event.
func (r *Registry) EmitRuleUpdated(ctx context.Context, oldRule, newRule interface{}) {
	r.mu.RLock()
	plugins := r.onRuleUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRuleUpdated(ctx, oldRule, newRule)
		}); err != nil {
			r.logger.Warn("plugin OnRuleUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRuleExhausted emits a rule exhausted event.
func (r *Registry) EmitRuleExhausted(ctx context.Context, ruleID string, uses, cap int) {
	r.mu.RLock()
	plugins := r.onRuleExhausted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRuleExhausted(ctx, ruleID, uses, cap)
		}); err != nil {
			r.logger.Warn("plugin OnRuleExhausted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitNotificationSent emits a notification sent event.
func (r *Registry) EmitNotificationSent(ctx context.Context, n interface{}) {
	r.mu.RLock()
	plugins := r.onNotificationSent
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnNotificationSent(ctx, n)
		}); err != nil {
			r.logger.Warn("plugin OnNotificationSent failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitNotificationFailed emits a notification failed event.
func (r *Registry) EmitNotificationFailed(ctx context.Context, n interface{}, cause error) {
	r.mu.RLock()
	plugins := r.onNotificationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnNotificationFailed(ctx, n, cause)
		}); err != nil {
			r.logger.Warn("plugin OnNotificationFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
