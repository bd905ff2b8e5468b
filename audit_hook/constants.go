package audithook

// Action constants for audit events.
const (
	// Customer actions
	ActionCustomerRegistered = "customer.registered"
	ActionCustomerUpdated    = "customer.updated"

	// Settlement actions
	ActionPurchaseSettled    = "purchase.settled"
	ActionQuoteComputed      = "quote.computed"
	ActionRedemptionDegraded = "redemption.degraded"

	// Bonus ledger actions
	ActionBonusesCredited = "bonuses.credited"
	ActionBonusesDebited  = "bonuses.debited"

	// Discount rule actions
	ActionRuleCreated   = "rule.created"
	ActionRuleUpdated   = "rule.updated"
	ActionRuleExhausted = "rule.exhausted"

	// Notification actions
	ActionNotificationSent   = "notification.sent"
	ActionNotificationFailed = "notification.failed"
)

// Resource constants for audit events.
const (
	ResourceCustomer     = "customer"
	ResourcePurchase     = "purchase"
	ResourceQuote        = "quote"
	ResourceBalance      = "balance"
	ResourceRule         = "rule"
	ResourceNotification = "notification"
)

// Category constants for audit events.
const (
	CategoryCustomer     = "customer"
	CategorySettlement   = "settlement"
	CategoryBonus        = "bonus"
	CategoryDiscount     = "discount"
	CategoryNotification = "notification"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
