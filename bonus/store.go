package bonus

import (
	"context"

	"github.com/xraph/loyalty/id"
)

type Store interface {
	// GetBalance returns the balance for a customer, or a not-found
	// error when no balance record exists yet.
	GetBalance(ctx context.Context, customerID id.CustomerID) (*Balance, error)
	// GetBalanceForUpdate is GetBalance with a row lock when the driver
	// supports one. Call it inside a transaction before mutating.
	GetBalanceForUpdate(ctx context.Context, customerID id.CustomerID) (*Balance, error)
	SaveBalance(ctx context.Context, b *Balance) error
	AppendTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, customerID id.CustomerID, opts ListOpts) ([]*Transaction, error)
}

type ListOpts struct {
	Type   TransactionType
	Limit  int
	Offset int
}
