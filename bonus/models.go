// Package bonus defines the bonus point ledger: one balance per customer
// plus an append-only transaction log.
package bonus

import (
	"time"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// DefaultEarnRateBP is the default bonus earn rate in basis points:
// 1% of the post-discount purchase amount.
const DefaultEarnRateBP = 100

// Balance is a customer's bonus point balance. The ledger maintains
// Current == TotalEarned - TotalSpent and Current >= 0 at all times.
type Balance struct {
	ID          id.BalanceID  `json:"id"`
	CustomerID  id.CustomerID `json:"customer_id"`
	Current     types.Money   `json:"current_balance"`
	TotalEarned types.Money   `json:"total_earned"`
	TotalSpent  types.Money   `json:"total_spent"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewBalance creates a zero balance for a customer.
func NewBalance(customerID id.CustomerID, currency string) *Balance {
	return &Balance{
		ID:          id.NewBalanceID(),
		CustomerID:  customerID,
		Current:     types.Zero(currency),
		TotalEarned: types.Zero(currency),
		TotalSpent:  types.Zero(currency),
		UpdatedAt:   time.Now().UTC(),
	}
}

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionEarned     TransactionType = "earned"
	TransactionSpent      TransactionType = "spent"
	TransactionExpired    TransactionType = "expired"
	TransactionAdjustment TransactionType = "adjustment"
)

// Transaction is one immutable ledger entry. Amount is always positive;
// the type determines the direction. BalanceBefore and BalanceAfter
// capture the balance around the movement so the log stands on its own
// as an audit trail.
type Transaction struct {
	ID            id.TransactionID `json:"id"`
	BalanceID     id.BalanceID     `json:"balance_id"`
	CustomerID    id.CustomerID    `json:"customer_id"`
	Type          TransactionType  `json:"type"`
	Amount        types.Money      `json:"amount"`
	BalanceBefore types.Money      `json:"balance_before"`
	BalanceAfter  types.Money      `json:"balance_after"`
	PurchaseID    id.PurchaseID    `json:"purchase_id,omitempty"`
	Description   string           `json:"description,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// Earned computes the bonus points earned on a settled purchase amount
// at the given rate in basis points, rounded half-up to the smallest
// currency unit. The caller passes the post-discount amount.
func Earned(final types.Money, rateBP int64) types.Money {
	if !final.IsPositive() {
		return types.Zero(final.Currency)
	}
	return final.BasisPoints(rateBP)
}

// Apply moves amount through the balance in the direction given by typ
// and returns the resulting transaction. It mutates the balance and
// assumes the caller has already validated the movement.
func (b *Balance) Apply(typ TransactionType, amount types.Money, purchaseID id.PurchaseID, description string) *Transaction {
	before := b.Current

	switch typ {
	case TransactionEarned, TransactionAdjustment:
		b.Current = b.Current.Add(amount)
		b.TotalEarned = b.TotalEarned.Add(amount)
	case TransactionSpent, TransactionExpired:
		b.Current = b.Current.Subtract(amount)
		b.TotalSpent = b.TotalSpent.Add(amount)
	}
	b.UpdatedAt = time.Now().UTC()

	return &Transaction{
		ID:            id.NewTransactionID(),
		BalanceID:     b.ID,
		CustomerID:    b.CustomerID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  b.Current,
		PurchaseID:    purchaseID,
		Description:   description,
		OccurredAt:    b.UpdatedAt,
	}
}
