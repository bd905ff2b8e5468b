package notification

import (
	"context"

	"github.com/xraph/loyalty/id"
)

type Store interface {
	Create(ctx context.Context, n *Notification) error
	Update(ctx context.Context, n *Notification) error
	List(ctx context.Context, customerID id.CustomerID, opts ListOpts) ([]*Notification, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
