package customer

import (
	"context"

	"github.com/xraph/loyalty/id"
)

type Store interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, customerID id.CustomerID) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)
	List(ctx context.Context, opts ListOpts) ([]*Customer, error)
	Update(ctx context.Context, c *Customer) error
	AppendChange(ctx context.Context, entry *ChangeEntry) error
	ListChanges(ctx context.Context, customerID id.CustomerID, opts ListOpts) ([]*ChangeEntry, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
