package purchase

import (
	"context"

	"github.com/xraph/loyalty/id"
)

type Store interface {
	Create(ctx context.Context, p *Purchase) error
	Get(ctx context.Context, purchaseID id.PurchaseID) (*Purchase, error)
	// GetByReceipt looks a purchase up by its receipt number, used for
	// duplicate-settlement detection.
	GetByReceipt(ctx context.Context, receiptNumber string) (*Purchase, error)
	List(ctx context.Context, customerID id.CustomerID, opts ListOpts) ([]*Purchase, error)
}

type ListOpts struct {
	StoreID string
	Limit   int
	Offset  int
}
