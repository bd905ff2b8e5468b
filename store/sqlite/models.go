package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
	"github.com/xraph/loyalty/types"
)

// ==================== Customer models ====================

type customerModel struct {
	grove.BaseModel `grove:"table:loyalty_customers"`

	ID                     string          `grove:"id,pk"`
	Phone                  string          `grove:"phone"`
	Email                  string          `grove:"email"`
	FirstName              string          `grove:"first_name"`
	LastName               string          `grove:"last_name"`
	BirthDate              *time.Time      `grove:"birth_date"`
	Status                 string          `grove:"status"`
	RegisteredAt           time.Time       `grove:"registered_at"`
	LastVisit              *time.Time      `grove:"last_visit"`
	TotalPurchasesCents    int64           `grove:"total_purchases_cents"`
	TotalPurchasesCurrency string          `grove:"total_purchases_currency"`
	TotalVisits            int             `grove:"total_visits"`
	PreferredStore         string          `grove:"preferred_store"`
	Segments               json.RawMessage `grove:"segments,type:jsonb"`
	CreatedAt              time.Time       `grove:"created_at"`
	UpdatedAt              time.Time       `grove:"updated_at"`
}

func toCustomerModel(c *customer.Customer) *customerModel {
	segments, _ := json.Marshal(c.Segments) //nolint:errcheck // best-effort

	return &customerModel{
		ID:                     c.ID.String(),
		Phone:                  c.Phone,
		Email:                  c.Email,
		FirstName:              c.FirstName,
		LastName:               c.LastName,
		BirthDate:              c.BirthDate,
		Status:                 string(c.Status),
		RegisteredAt:           c.RegisteredAt,
		LastVisit:              c.LastVisit,
		TotalPurchasesCents:    c.TotalPurchases.Amount,
		TotalPurchasesCurrency: c.TotalPurchases.Currency,
		TotalVisits:            c.TotalVisits,
		PreferredStore:         c.PreferredStore,
		Segments:               segments,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

func fromCustomerModel(m *customerModel) (*customer.Customer, error) {
	customerID, err := id.ParseCustomerID(m.ID)
	if err != nil {
		return nil, err
	}

	var segments []string
	if len(m.Segments) > 0 {
		_ = json.Unmarshal(m.Segments, &segments) //nolint:errcheck // best-effort
	}

	return &customer.Customer{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             customerID,
		Phone:          m.Phone,
		Email:          m.Email,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		BirthDate:      m.BirthDate,
		Status:         customer.Status(m.Status),
		RegisteredAt:   m.RegisteredAt,
		LastVisit:      m.LastVisit,
		TotalPurchases: types.Money{Amount: m.TotalPurchasesCents, Currency: m.TotalPurchasesCurrency},
		TotalVisits:    m.TotalVisits,
		PreferredStore: m.PreferredStore,
		Segments:       segments,
	}, nil
}

type customerChangeModel struct {
	grove.BaseModel `grove:"table:loyalty_customer_changes"`

	ID         string    `grove:"id,pk"`
	CustomerID string    `grove:"customer_id"`
	ChangedBy  string    `grove:"changed_by"`
	Field      string    `grove:"field"`
	OldValue   string    `grove:"old_value"`
	NewValue   string    `grove:"new_value"`
	ChangedAt  time.Time `grove:"changed_at"`
}

func toCustomerChangeModel(e *customer.ChangeEntry) *customerChangeModel {
	return &customerChangeModel{
		ID:         e.ID.String(),
		CustomerID: e.CustomerID.String(),
		ChangedBy:  e.ChangedBy,
		Field:      e.Field,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		ChangedAt:  e.ChangedAt,
	}
}

func fromCustomerChangeModel(m *customerChangeModel) (*customer.ChangeEntry, error) {
	changeID, err := id.ParseChangeID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}

	return &customer.ChangeEntry{
		ID:         changeID,
		CustomerID: customerID,
		ChangedBy:  m.ChangedBy,
		Field:      m.Field,
		OldValue:   m.OldValue,
		NewValue:   m.NewValue,
		ChangedAt:  m.ChangedAt,
	}, nil
}

// ==================== Bonus models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:loyalty_balances"`

	ID               string    `grove:"id,pk"`
	CustomerID       string    `grove:"customer_id"`
	Currency         string    `grove:"currency"`
	CurrentCents     int64     `grove:"current_cents"`
	TotalEarnedCents int64     `grove:"total_earned_cents"`
	TotalSpentCents  int64     `grove:"total_spent_cents"`
	UpdatedAt        time.Time `grove:"updated_at"`
}

func toBalanceModel(b *bonus.Balance) *balanceModel {
	return &balanceModel{
		ID:               b.ID.String(),
		CustomerID:       b.CustomerID.String(),
		Currency:         b.Current.Currency,
		CurrentCents:     b.Current.Amount,
		TotalEarnedCents: b.TotalEarned.Amount,
		TotalSpentCents:  b.TotalSpent.Amount,
		UpdatedAt:        b.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) (*bonus.Balance, error) {
	balanceID, err := id.ParseBalanceID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}

	return &bonus.Balance{
		ID:          balanceID,
		CustomerID:  customerID,
		Current:     types.Money{Amount: m.CurrentCents, Currency: m.Currency},
		TotalEarned: types.Money{Amount: m.TotalEarnedCents, Currency: m.Currency},
		TotalSpent:  types.Money{Amount: m.TotalSpentCents, Currency: m.Currency},
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

type bonusTransactionModel struct {
	grove.BaseModel `grove:"table:loyalty_bonus_transactions"`

	ID                 string    `grove:"id,pk"`
	BalanceID          string    `grove:"balance_id"`
	CustomerID         string    `grove:"customer_id"`
	Type               string    `grove:"type"`
	Currency           string    `grove:"currency"`
	AmountCents        int64     `grove:"amount_cents"`
	BalanceBeforeCents int64     `grove:"balance_before_cents"`
	BalanceAfterCents  int64     `grove:"balance_after_cents"`
	PurchaseID         string    `grove:"purchase_id"`
	Description        string    `grove:"description"`
	OccurredAt         time.Time `grove:"occurred_at"`
}

func toBonusTransactionModel(t *bonus.Transaction) *bonusTransactionModel {
	purchaseID := ""
	if !t.PurchaseID.IsNil() {
		purchaseID = t.PurchaseID.String()
	}

	return &bonusTransactionModel{
		ID:                 t.ID.String(),
		BalanceID:          t.BalanceID.String(),
		CustomerID:         t.CustomerID.String(),
		Type:               string(t.Type),
		Currency:           t.Amount.Currency,
		AmountCents:        t.Amount.Amount,
		BalanceBeforeCents: t.BalanceBefore.Amount,
		BalanceAfterCents:  t.BalanceAfter.Amount,
		PurchaseID:         purchaseID,
		Description:        t.Description,
		OccurredAt:         t.OccurredAt,
	}
}

func fromBonusTransactionModel(m *bonusTransactionModel) (*bonus.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	balanceID, err := id.ParseBalanceID(m.BalanceID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}
	var purchaseID id.PurchaseID
	if m.PurchaseID != "" {
		purchaseID, err = id.ParsePurchaseID(m.PurchaseID)
		if err != nil {
			return nil, err
		}
	}

	return &bonus.Transaction{
		ID:            txnID,
		BalanceID:     balanceID,
		CustomerID:    customerID,
		Type:          bonus.TransactionType(m.Type),
		Amount:        types.Money{Amount: m.AmountCents, Currency: m.Currency},
		BalanceBefore: types.Money{Amount: m.BalanceBeforeCents, Currency: m.Currency},
		BalanceAfter:  types.Money{Amount: m.BalanceAfterCents, Currency: m.Currency},
		PurchaseID:    purchaseID,
		Description:   m.Description,
		OccurredAt:    m.OccurredAt,
	}, nil
}

// ==================== Discount models ====================

type ruleModel struct {
	grove.BaseModel `grove:"table:loyalty_discount_rules"`

	ID                  string          `grove:"id,pk"`
	Name                string          `grove:"name"`
	Description         string          `grove:"description"`
	Type                string          `grove:"type"`
	PercentBP           int64           `grove:"percent_bp"`
	AmountCents         int64           `grove:"amount_cents"`
	AmountCurrency      string          `grove:"amount_currency"`
	Status              string          `grove:"status"`
	MinPurchaseCents    int64           `grove:"min_purchase_cents"`
	MinPurchaseCurrency string          `grove:"min_purchase_currency"`
	MaxDiscountCents    int64           `grove:"max_discount_cents"`
	MaxDiscountCurrency string          `grove:"max_discount_currency"`
	Stores              json.RawMessage `grove:"stores,type:jsonb"`
	Segments            json.RawMessage `grove:"segments,type:jsonb"`
	NewCustomerOnly     bool            `grove:"new_customer_only"`
	MinVisitsRequired   int             `grove:"min_visits_required"`
	MaxUsesPerCustomer  int             `grove:"max_uses_per_customer"`
	MaxTotalUses        int             `grove:"max_total_uses"`
	CurrentUses         int             `grove:"current_uses"`
	ValidFrom           *time.Time      `grove:"valid_from"`
	ValidUntil          *time.Time      `grove:"valid_until"`
	CreatedAt           time.Time       `grove:"created_at"`
	UpdatedAt           time.Time       `grove:"updated_at"`
}

func toRuleModel(r *discount.Rule) *ruleModel {
	stores, _ := json.Marshal(r.Stores)     //nolint:errcheck // best-effort
	segments, _ := json.Marshal(r.Segments) //nolint:errcheck // best-effort

	return &ruleModel{
		ID:                  r.ID.String(),
		Name:                r.Name,
		Description:         r.Description,
		Type:                string(r.Type),
		PercentBP:           r.PercentBP,
		AmountCents:         r.Amount.Amount,
		AmountCurrency:      r.Amount.Currency,
		Status:              string(r.Status),
		MinPurchaseCents:    r.MinPurchaseAmount.Amount,
		MinPurchaseCurrency: r.MinPurchaseAmount.Currency,
		MaxDiscountCents:    r.MaxDiscountAmount.Amount,
		MaxDiscountCurrency: r.MaxDiscountAmount.Currency,
		Stores:              stores,
		Segments:            segments,
		NewCustomerOnly:     r.NewCustomerOnly,
		MinVisitsRequired:   r.MinVisitsRequired,
		MaxUsesPerCustomer:  r.MaxUsesPerCustomer,
		MaxTotalUses:        r.MaxTotalUses,
		CurrentUses:         r.CurrentUses,
		ValidFrom:           r.ValidFrom,
		ValidUntil:          r.ValidUntil,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func fromRuleModel(m *ruleModel) (*discount.Rule, error) {
	ruleID, err := id.ParseRuleID(m.ID)
	if err != nil {
		return nil, err
	}

	var stores, segments []string
	if len(m.Stores) > 0 {
		_ = json.Unmarshal(m.Stores, &stores) //nolint:errcheck // best-effort
	}
	if len(m.Segments) > 0 {
		_ = json.Unmarshal(m.Segments, &segments) //nolint:errcheck // best-effort
	}

	return &discount.Rule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 ruleID,
		Name:               m.Name,
		Description:        m.Description,
		Type:               discount.Type(m.Type),
		PercentBP:          m.PercentBP,
		Amount:             types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Status:             discount.Status(m.Status),
		MinPurchaseAmount:  types.Money{Amount: m.MinPurchaseCents, Currency: m.MinPurchaseCurrency},
		MaxDiscountAmount:  types.Money{Amount: m.MaxDiscountCents, Currency: m.MaxDiscountCurrency},
		Stores:             stores,
		Segments:           segments,
		NewCustomerOnly:    m.NewCustomerOnly,
		MinVisitsRequired:  m.MinVisitsRequired,
		MaxUsesPerCustomer: m.MaxUsesPerCustomer,
		MaxTotalUses:       m.MaxTotalUses,
		CurrentUses:        m.CurrentUses,
		ValidFrom:          m.ValidFrom,
		ValidUntil:         m.ValidUntil,
	}, nil
}

type applicationModel struct {
	grove.BaseModel `grove:"table:loyalty_discount_applications"`

	ID            string    `grove:"id,pk"`
	RuleID        string    `grove:"rule_id"`
	PurchaseID    string    `grove:"purchase_id"`
	CustomerID    string    `grove:"customer_id"`
	Currency      string    `grove:"currency"`
	OriginalCents int64     `grove:"original_cents"`
	DiscountCents int64     `grove:"discount_cents"`
	FinalCents    int64     `grove:"final_cents"`
	AppliedAt     time.Time `grove:"applied_at"`
}

func toApplicationModel(a *discount.Application) *applicationModel {
	return &applicationModel{
		ID:            a.ID.String(),
		RuleID:        a.RuleID.String(),
		PurchaseID:    a.PurchaseID.String(),
		CustomerID:    a.CustomerID.String(),
		Currency:      a.OriginalAmount.Currency,
		OriginalCents: a.OriginalAmount.Amount,
		DiscountCents: a.DiscountAmount.Amount,
		FinalCents:    a.FinalAmount.Amount,
		AppliedAt:     a.AppliedAt,
	}
}

func fromApplicationModel(m *applicationModel) (*discount.Application, error) {
	appID, err := id.ParseApplicationID(m.ID)
	if err != nil {
		return nil, err
	}
	ruleID, err := id.ParseRuleID(m.RuleID)
	if err != nil {
		return nil, err
	}
	purchaseID, err := id.ParsePurchaseID(m.PurchaseID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}

	return &discount.Application{
		ID:             appID,
		RuleID:         ruleID,
		PurchaseID:     purchaseID,
		CustomerID:     customerID,
		OriginalAmount: types.Money{Amount: m.OriginalCents, Currency: m.Currency},
		DiscountAmount: types.Money{Amount: m.DiscountCents, Currency: m.Currency},
		FinalAmount:    types.Money{Amount: m.FinalCents, Currency: m.Currency},
		AppliedAt:      m.AppliedAt,
	}, nil
}

// ==================== Purchase models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:loyalty_purchases"`

	ID                   string    `grove:"id,pk"`
	CustomerID           string    `grove:"customer_id"`
	StoreID              string    `grove:"store_id"`
	PurchasedAt          time.Time `grove:"purchased_at"`
	Currency             string    `grove:"currency"`
	OriginalAmountCents  int64     `grove:"original_amount_cents"`
	AmountCents          int64     `grove:"amount_cents"`
	ItemsCount           int       `grove:"items_count"`
	DiscountAppliedCents int64     `grove:"discount_applied_cents"`
	BonusesUsedCents     int64     `grove:"bonuses_used_cents"`
	BonusesEarnedCents   int64     `grove:"bonuses_earned_cents"`
	PaymentMethod        string    `grove:"payment_method"`
	ReceiptNumber        string    `grove:"receipt_number"`
	CashierID            string    `grove:"cashier_id"`
	Notes                string    `grove:"notes"`
}

func toPurchaseModel(p *purchase.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:                   p.ID.String(),
		CustomerID:           p.CustomerID.String(),
		StoreID:              p.StoreID,
		PurchasedAt:          p.PurchasedAt,
		Currency:             p.Amount.Currency,
		OriginalAmountCents:  p.OriginalAmount.Amount,
		AmountCents:          p.Amount.Amount,
		ItemsCount:           p.ItemsCount,
		DiscountAppliedCents: p.DiscountApplied.Amount,
		BonusesUsedCents:     p.BonusesUsed.Amount,
		BonusesEarnedCents:   p.BonusesEarned.Amount,
		PaymentMethod:        p.PaymentMethod,
		ReceiptNumber:        p.ReceiptNumber,
		CashierID:            p.CashierID,
		Notes:                p.Notes,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Purchase, error) {
	purchaseID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}

	return &purchase.Purchase{
		ID:              purchaseID,
		CustomerID:      customerID,
		StoreID:         m.StoreID,
		PurchasedAt:     m.PurchasedAt,
		OriginalAmount:  types.Money{Amount: m.OriginalAmountCents, Currency: m.Currency},
		Amount:          types.Money{Amount: m.AmountCents, Currency: m.Currency},
		ItemsCount:      m.ItemsCount,
		DiscountApplied: types.Money{Amount: m.DiscountAppliedCents, Currency: m.Currency},
		BonusesUsed:     types.Money{Amount: m.BonusesUsedCents, Currency: m.Currency},
		BonusesEarned:   types.Money{Amount: m.BonusesEarnedCents, Currency: m.Currency},
		PaymentMethod:   m.PaymentMethod,
		ReceiptNumber:   m.ReceiptNumber,
		CashierID:       m.CashierID,
		Notes:           m.Notes,
	}, nil
}

// ==================== Notification models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:loyalty_notifications"`

	ID         string     `grove:"id,pk"`
	CustomerID string     `grove:"customer_id"`
	Channel    string     `grove:"channel"`
	Subject    string     `grove:"subject"`
	Message    string     `grove:"message"`
	Status     string     `grove:"status"`
	Error      string     `grove:"error"`
	CreatedAt  time.Time  `grove:"created_at"`
	SentAt     *time.Time `grove:"sent_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:         n.ID.String(),
		CustomerID: n.CustomerID.String(),
		Channel:    string(n.Channel),
		Subject:    n.Subject,
		Message:    n.Message,
		Status:     string(n.Status),
		Error:      n.Error,
		CreatedAt:  n.CreatedAt,
		SentAt:     n.SentAt,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	notificationID, err := id.ParseNotificationID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}

	return &notification.Notification{
		ID:         notificationID,
		CustomerID: customerID,
		Channel:    notification.Channel(m.Channel),
		Subject:    m.Subject,
		Message:    m.Message,
		Status:     notification.Status(m.Status),
		Error:      m.Error,
		CreatedAt:  m.CreatedAt,
		SentAt:     m.SentAt,
	}, nil
}
