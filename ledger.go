package loyalty

import (
	"context"
	"fmt"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/types"
)

// Balance returns a customer's bonus balance.
func (e *Engine) Balance(ctx context.Context, customerID id.CustomerID) (*bonus.Balance, error) {
	return e.store.GetBalance(ctx, customerID)
}

// Transactions returns a customer's ledger history, newest first.
func (e *Engine) Transactions(ctx context.Context, customerID id.CustomerID, opts bonus.ListOpts) ([]*bonus.Transaction, error) {
	return e.store.ListTransactions(ctx, customerID, opts)
}

// CreditBonuses adds bonus points to a customer's balance and records
// the ledger transaction. Amount must be positive.
func (e *Engine) CreditBonuses(ctx context.Context, customerID id.CustomerID, amount types.Money, description string) (*bonus.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	var txn *bonus.Transaction
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		b, err := tx.GetBalanceForUpdate(ctx, customerID)
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			// Registration opens a balance, but imported customers may
			// predate that; open one on first credit.
			if _, err := tx.GetCustomer(ctx, customerID); err != nil {
				return err
			}
			b = bonus.NewBalance(customerID, e.currency)
		}

		txn = b.Apply(bonus.TransactionEarned, amount, id.PurchaseID{}, description)

		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitBonusesCredited(ctx, txn)

	return txn, nil
}

// DebitBonuses removes bonus points from a customer's balance and
// records the ledger transaction. The balance never goes negative: a
// debit larger than the current balance fails with
// ErrInsufficientBalance and leaves the ledger untouched.
func (e *Engine) DebitBonuses(ctx context.Context, customerID id.CustomerID, amount types.Money, description string) (*bonus.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	var txn *bonus.Transaction
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		b, err := tx.GetBalanceForUpdate(ctx, customerID)
		if err != nil {
			return err
		}

		if b.Current.LessThan(amount) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, b.Current, amount)
		}

		txn = b.Apply(bonus.TransactionSpent, amount, id.PurchaseID{}, description)

		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitBonusesDebited(ctx, txn)

	return txn, nil
}
