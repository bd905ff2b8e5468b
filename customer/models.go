// Package customer defines customer profiles and their change history.
package customer

import (
	"time"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Status is the lifecycle status of a customer.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusVIP      Status = "vip"
)

// Customer is a loyalty program member. Phone is the primary identity
// and must be unique. TotalPurchases and TotalVisits only grow; they are
// updated by purchase settlement alongside LastVisit.
type Customer struct {
	types.Entity
	ID             id.CustomerID `json:"id"`
	Phone          string        `json:"phone"`
	Email          string        `json:"email,omitempty"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name,omitempty"`
	BirthDate      *time.Time    `json:"birth_date,omitempty"`
	Status         Status        `json:"status"`
	RegisteredAt   time.Time     `json:"registered_at"`
	LastVisit      *time.Time    `json:"last_visit,omitempty"`
	TotalPurchases types.Money   `json:"total_purchases"`
	TotalVisits    int           `json:"total_visits"`
	PreferredStore string        `json:"preferred_store,omitempty"`
	Segments       []string      `json:"segments,omitempty"`
}

// IsNewCustomer reports whether the customer qualifies for
// new-customer-only discount rules. A customer on their first visit
// (counters not yet incremented) still qualifies.
func (c *Customer) IsNewCustomer() bool {
	return c.TotalVisits <= 1
}

// ChangeEntry is one recorded field change on a customer profile.
// Entries are append-only.
type ChangeEntry struct {
	ID         id.ChangeID   `json:"id"`
	CustomerID id.CustomerID `json:"customer_id"`
	ChangedBy  string        `json:"changed_by,omitempty"`
	Field      string        `json:"field"`
	OldValue   string        `json:"old_value,omitempty"`
	NewValue   string        `json:"new_value,omitempty"`
	ChangedAt  time.Time     `json:"changed_at"`
}
