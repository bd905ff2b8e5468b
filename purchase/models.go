// Package purchase defines settled point-of-sale purchase records.
package purchase

import (
	"time"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Purchase is one settled point-of-sale event. Amount is the final
// payable value after discounts and bonus redemption; OriginalAmount
// preserves the pre-discount value for history. Records are written
// once at settlement commit and never amended afterward.
type Purchase struct {
	ID              id.PurchaseID `json:"id"`
	CustomerID      id.CustomerID `json:"customer_id"`
	StoreID         string        `json:"store_id"`
	PurchasedAt     time.Time     `json:"purchased_at"`
	OriginalAmount  types.Money   `json:"original_amount"`
	Amount          types.Money   `json:"amount"`
	ItemsCount      int           `json:"items_count"`
	DiscountApplied types.Money   `json:"discount_applied"`
	BonusesUsed     types.Money   `json:"bonuses_used"`
	BonusesEarned   types.Money   `json:"bonuses_earned"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	ReceiptNumber   string        `json:"receipt_number,omitempty"`
	CashierID       string        `json:"cashier_id,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}
