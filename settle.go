package loyalty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/discount"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/purchase"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/types"
)

// Actor identifies who is settling a purchase. A non-superuser actor
// may only settle purchases for their own store.
type Actor struct {
	CashierID string `json:"cashier_id,omitempty"`
	StoreID   string `json:"store_id,omitempty"`
	Superuser bool   `json:"superuser,omitempty"`
}

// SettleRequest holds the inputs for settling a purchase.
type SettleRequest struct {
	CustomerID      id.CustomerID `json:"customer_id"`
	StoreID         string        `json:"store_id"`
	Amount          types.Money   `json:"amount"`
	ItemsCount      int           `json:"items_count,omitempty"`
	BonusesToRedeem types.Money   `json:"bonuses_to_redeem,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	ReceiptNumber   string        `json:"receipt_number,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Actor           Actor         `json:"actor"`
}

// SettleResult is the outcome of a settled purchase.
type SettleResult struct {
	Purchase *purchase.Purchase `json:"purchase"`
	Quote    *discount.Quote    `json:"quote"`

	// RedemptionDegraded is set when the customer asked to redeem more
	// bonuses than their balance held and the redemption was skipped.
	RedemptionDegraded bool `json:"redemption_degraded,omitempty"`
}

// Settle runs the full purchase settlement: authorize the actor, quote
// discounts, optionally redeem bonuses, persist the purchase with its
// discount applications, and credit the earned bonuses — all in one
// transaction. A redemption the balance cannot cover is skipped rather
// than failing the sale. Notifications go out after the commit.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: purchase amount must be positive, got %s", ErrInvalidAmount, req.Amount)
	}
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, &ValidationError{Field: "store_id", Message: "store_id is required"}
	}
	if req.BonusesToRedeem.IsNegative() {
		return nil, fmt.Errorf("%w: bonuses to redeem cannot be negative", ErrInvalidAmount)
	}

	// Store-scope authorization happens before any store access.
	if !req.Actor.Superuser && req.Actor.StoreID != req.StoreID {
		return nil, fmt.Errorf("%w: actor of store %q cannot settle for store %q",
			ErrStoreMismatch, req.Actor.StoreID, req.StoreID)
	}

	now := time.Now().UTC()
	result := &SettleResult{}

	var (
		debitTxn         *bonus.Transaction
		creditTxn        *bonus.Transaction
		availableAtQuote int64
	)

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		c, err := tx.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if c.Status == customer.StatusInactive {
			return fmt.Errorf("%w: customer %s", ErrCustomerInactive, c.ID)
		}

		if req.ReceiptNumber != "" {
			existing, err := tx.GetPurchaseByReceipt(ctx, req.ReceiptNumber)
			if err != nil && !IsNotFound(err) {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: receipt %s already settled as purchase %s",
					ErrDuplicateReceipt, req.ReceiptNumber, existing.ID)
			}
		}

		q, err := e.quoteWith(ctx, tx, c, req.StoreID, req.Amount, now)
		if err != nil {
			return err
		}
		result.Quote = q

		b, err := tx.GetBalanceForUpdate(ctx, req.CustomerID)
		balanceCreated := false
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			// Imported customers may predate registration-time balances;
			// open one here rather than failing the sale.
			b = bonus.NewBalance(req.CustomerID, e.currency)
			balanceCreated = true
		}

		// Redemption is capped by the post-discount amount and skipped
		// outright when the balance cannot cover the request. The sale
		// itself never fails on bonus shortfall.
		used := types.Zero(req.Amount.Currency)
		availableAtQuote = b.Current.Amount
		if req.BonusesToRedeem.IsPositive() {
			want := req.BonusesToRedeem.Min(q.FinalAmount)
			if b.Current.LessThan(want) {
				result.RedemptionDegraded = true
			} else {
				used = want
			}
		}

		purchaseID := id.NewPurchaseID()
		p := &purchase.Purchase{
			ID:              purchaseID,
			CustomerID:      c.ID,
			StoreID:         req.StoreID,
			PurchasedAt:     now,
			OriginalAmount:  req.Amount,
			Amount:          q.FinalAmount.Subtract(used),
			ItemsCount:      req.ItemsCount,
			DiscountApplied: q.TotalDiscount,
			BonusesUsed:     used,
			BonusesEarned:   q.BonusesEarned,
			PaymentMethod:   req.PaymentMethod,
			ReceiptNumber:   req.ReceiptNumber,
			CashierID:       req.Actor.CashierID,
			Notes:           req.Notes,
		}

		c.TotalVisits++
		c.TotalPurchases = c.TotalPurchases.Add(req.Amount)
		c.LastVisit = &now
		c.Touch()
		if err := tx.UpdateCustomer(ctx, c); err != nil {
			return err
		}

		if err := tx.CreatePurchase(ctx, p); err != nil {
			return err
		}

		for _, d := range q.Discounts {
			// Each record accounts for its own rule in isolation:
			// FinalAmount == OriginalAmount - DiscountAmount, not the
			// quote-level total after stacking.
			app := &discount.Application{
				ID:             id.NewApplicationID(),
				RuleID:         d.RuleID,
				PurchaseID:     purchaseID,
				CustomerID:     c.ID,
				OriginalAmount: req.Amount,
				DiscountAmount: d.Amount,
				FinalAmount:    req.Amount.Subtract(d.Amount),
				AppliedAt:      now,
			}
			if err := tx.CreateApplication(ctx, app); err != nil {
				return err
			}
			if err := tx.IncrementRuleUses(ctx, d.RuleID); err != nil {
				return err
			}
		}

		if used.IsPositive() {
			debitTxn = b.Apply(bonus.TransactionSpent, used, purchaseID,
				fmt.Sprintf("redeemed on purchase %s", purchaseID))
			if err := tx.AppendTransaction(ctx, debitTxn); err != nil {
				return err
			}
		}
		if q.BonusesEarned.IsPositive() {
			creditTxn = b.Apply(bonus.TransactionEarned, q.BonusesEarned, purchaseID,
				fmt.Sprintf("earned on purchase %s", purchaseID))
			if err := tx.AppendTransaction(ctx, creditTxn); err != nil {
				return err
			}
		}
		if balanceCreated || debitTxn != nil || creditTxn != nil {
			if err := tx.SaveBalance(ctx, b); err != nil {
				return err
			}
		}

		result.Purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterSettle(ctx, req, result, debitTxn, creditTxn, availableAtQuote)

	return result, nil
}

// afterSettle emits plugin events and queues the customer notification
// once the settlement transaction has committed.
func (e *Engine) afterSettle(ctx context.Context, req SettleRequest, result *SettleResult, debitTxn, creditTxn *bonus.Transaction, available int64) {
	p := result.Purchase

	e.plugins.EmitPurchaseSettled(ctx, p)
	if result.RedemptionDegraded {
		e.plugins.EmitRedemptionDegraded(ctx, p.CustomerID.String(),
			req.BonusesToRedeem.Amount, available)
	}
	if debitTxn != nil {
		e.plugins.EmitBonusesDebited(ctx, debitTxn)
	}
	if creditTxn != nil {
		e.plugins.EmitBonusesCredited(ctx, creditTxn)
	}

	if p.BonusesEarned.IsPositive() {
		msg := fmt.Sprintf("Thanks for your purchase of %s! You earned %s bonus points.",
			p.Amount.FormatMajor(), p.BonusesEarned.FormatMajor())
		e.enqueueNotification(notification.New(p.CustomerID, notification.ChannelSMS, "Purchase settled", msg))
	}

	e.logger.Info("purchase settled",
		"purchase_id", p.ID.String(),
		"customer_id", p.CustomerID.String(),
		"store_id", p.StoreID,
		"amount", p.Amount.String(),
		"discount", p.DiscountApplied.String(),
		"bonuses_used", p.BonusesUsed.String(),
		"bonuses_earned", p.BonusesEarned.String(),
	)
}

// PurchaseHistory returns a customer's settled purchases, newest first.
func (e *Engine) PurchaseHistory(ctx context.Context, customerID id.CustomerID, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	return e.store.ListPurchases(ctx, customerID, opts)
}

// GetPurchase retrieves a settled purchase by ID.
func (e *Engine) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	return e.store.GetPurchase(ctx, purchaseID)
}

// PurchaseApplications returns the discount applications recorded for a
// purchase.
func (e *Engine) PurchaseApplications(ctx context.Context, purchaseID id.PurchaseID) ([]*discount.Application, error) {
	return e.store.ListApplications(ctx, purchaseID)
}
