// Package audithook bridges Loyalty lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/loyalty/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnCustomerRegistered = (*Extension)(nil)
	_ plugin.OnCustomerUpdated    = (*Extension)(nil)
	_ plugin.OnPurchaseSettled    = (*Extension)(nil)
	_ plugin.OnQuoteComputed      = (*Extension)(nil)
	_ plugin.OnRedemptionDegraded = (*Extension)(nil)
	_ plugin.OnBonusesCredited    = (*Extension)(nil)
	_ plugin.OnBonusesDebited     = (*Extension)(nil)
	_ plugin.OnRuleCreated        = (*Extension)(nil)
	_ plugin.OnRuleUpdated        = (*Extension)(nil)
	_ plugin.OnRuleExhausted      = (*Extension)(nil)
	_ plugin.OnNotificationFailed = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Loyalty lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Customer lifecycle hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (e *Extension) OnCustomerRegistered(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionCustomerRegistered, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, "", CategoryCustomer, nil,
		"event", "customer_registered",
	)
}

// OnCustomerUpdated implements plugin.OnCustomerUpdated.
func (e *Extension) OnCustomerUpdated(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionCustomerUpdated, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, "", CategoryCustomer, nil,
		"event", "customer_updated",
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnPurchaseSettled implements plugin.OnPurchaseSettled.
func (e *Extension) OnPurchaseSettled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPurchaseSettled, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, "", CategorySettlement, nil,
		"event", "purchase_settled",
	)
}

// OnQuoteComputed implements plugin.OnQuoteComputed.
func (e *Extension) OnQuoteComputed(_ context.Context, _ interface{}) error {
	// Quotes are read-only and high volume; skip to reduce noise.
	return nil
}

// OnRedemptionDegraded implements plugin.OnRedemptionDegraded.
func (e *Extension) OnRedemptionDegraded(ctx context.Context, customerID string, requested, available int64) error {
	return e.record(ctx, ActionRedemptionDegraded, SeverityWarning, OutcomePartial,
		ResourceBalance, customerID, CategorySettlement, nil,
		"customer_id", customerID,
		"requested", requested,
		"available", available,
	)
}

// ──────────────────────────────────────────────────
// Bonus ledger hooks
// ──────────────────────────────────────────────────

// OnBonusesCredited implements plugin.OnBonusesCredited.
func (e *Extension) OnBonusesCredited(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionBonusesCredited, SeverityInfo, OutcomeSuccess,
		ResourceBalance, "", CategoryBonus, nil,
		"event", "bonuses_credited",
	)
}

// OnBonusesDebited implements plugin.OnBonusesDebited.
func (e *Extension) OnBonusesDebited(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionBonusesDebited, SeverityInfo, OutcomeSuccess,
		ResourceBalance, "", CategoryBonus, nil,
		"event", "bonuses_debited",
	)
}

// ──────────────────────────────────────────────────
// Discount rule hooks
// ──────────────────────────────────────────────────

// OnRuleCreated implements plugin.OnRuleCreated.
func (e *Extension) OnRuleCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionRuleCreated, SeverityInfo, OutcomeSuccess,
		ResourceRule, "", CategoryDiscount, nil,
		"event", "rule_created",
	)
}

// OnRuleUpdated implements plugin.OnRuleUpdated.
func (e *Extension) OnRuleUpdated(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionRuleUpdated, SeverityInfo, OutcomeSuccess,
		ResourceRule, "", CategoryDiscount, nil,
		"event", "rule_updated",
	)
}

// OnRuleExhausted implements plugin.OnRuleExhausted.
func (e *Extension) OnRuleExhausted(ctx context.Context, ruleID string, uses, capLimit int) error {
	return e.record(ctx, ActionRuleExhausted, SeverityWarning, OutcomeFailure,
		ResourceRule, ruleID, CategoryDiscount, nil,
		"rule_id", ruleID,
		"uses", uses,
		"limit", capLimit,
	)
}

// ──────────────────────────────────────────────────
// Notification hooks
// ──────────────────────────────────────────────────

// OnNotificationFailed implements plugin.OnNotificationFailed.
func (e *Extension) OnNotificationFailed(ctx context.Context, _ interface{}, err error) error {
	return e.record(ctx, ActionNotificationFailed, SeverityError, OutcomeFailure,
		ResourceNotification, "", CategoryNotification, err,
		"event", "notification_failed",
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
