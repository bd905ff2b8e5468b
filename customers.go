package loyalty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/loyalty/bonus"
	"github.com/xraph/loyalty/customer"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/types"
)

// RegisterCustomerInput holds the fields for registering a customer.
type RegisterCustomerInput struct {
	Phone          string     `json:"phone"`
	Email          string     `json:"email,omitempty"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	PreferredStore string     `json:"preferred_store,omitempty"`
	Segments       []string   `json:"segments,omitempty"`
}

// RegisterCustomer creates a customer and their zero bonus balance in a
// single transaction. Phone numbers are unique across the program.
func (e *Engine) RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (*customer.Customer, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Message: "phone is required"}
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return nil, &ValidationError{Field: "first_name", Message: "first name is required"}
	}

	now := time.Now().UTC()
	c := &customer.Customer{
		Entity:         types.NewEntity(),
		ID:             id.NewCustomerID(),
		Phone:          phone,
		Email:          strings.TrimSpace(input.Email),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		BirthDate:      input.BirthDate,
		Status:         customer.StatusActive,
		RegisteredAt:   now,
		TotalPurchases: types.Zero(e.currency),
		TotalVisits:    0,
		PreferredStore: input.PreferredStore,
		Segments:       input.Segments,
	}

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		existing, err := tx.GetCustomerByPhone(ctx, phone)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: phone %s", ErrCustomerExists, phone)
		}

		if err := tx.CreateCustomer(ctx, c); err != nil {
			return err
		}

		// Every customer gets a balance row up front so ledger reads
		// never have to special-case a missing balance.
		return tx.SaveBalance(ctx, bonus.NewBalance(c.ID, e.currency))
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCustomerRegistered(ctx, c)
	e.logger.Info("customer registered",
		"customer_id", c.ID.String(),
		"phone", c.Phone,
	)

	return c, nil
}

// GetCustomer retrieves a customer by ID.
func (e *Engine) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	return e.store.GetCustomer(ctx, customerID)
}

// GetCustomerByPhone retrieves a customer by their phone number.
func (e *Engine) GetCustomerByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	return e.store.GetCustomerByPhone(ctx, strings.TrimSpace(phone))
}

// ListCustomers lists customers, optionally filtered by status.
func (e *Engine) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	return e.store.ListCustomers(ctx, opts)
}

// UpdateCustomerInput holds the mutable profile fields. Nil fields are
// left unchanged; ChangedBy identifies the operator for the audit trail.
type UpdateCustomerInput struct {
	Email          *string          `json:"email,omitempty"`
	FirstName      *string          `json:"first_name,omitempty"`
	LastName       *string          `json:"last_name,omitempty"`
	BirthDate      *time.Time       `json:"birth_date,omitempty"`
	Status         *customer.Status `json:"status,omitempty"`
	PreferredStore *string          `json:"preferred_store,omitempty"`
	Segments       []string         `json:"segments,omitempty"`
	ChangedBy      string           `json:"changed_by,omitempty"`
}

// UpdateCustomer applies a partial profile update and records one
// ChangeEntry per field that actually changed.
func (e *Engine) UpdateCustomer(ctx context.Context, customerID id.CustomerID, input UpdateCustomerInput) (*customer.Customer, error) {
	var (
		before  customer.Customer
		updated *customer.Customer
	)

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		c, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		before = *c

		now := time.Now().UTC()
		var changes []*customer.ChangeEntry
		record := func(field, oldVal, newVal string) {
			if oldVal == newVal {
				return
			}
			changes = append(changes, &customer.ChangeEntry{
				ID:         id.NewChangeID(),
				CustomerID: c.ID,
				ChangedBy:  input.ChangedBy,
				Field:      field,
				OldValue:   oldVal,
				NewValue:   newVal,
				ChangedAt:  now,
			})
		}

		if input.Email != nil {
			record("email", c.Email, *input.Email)
			c.Email = *input.Email
		}
		if input.FirstName != nil {
			record("first_name", c.FirstName, *input.FirstName)
			c.FirstName = *input.FirstName
		}
		if input.LastName != nil {
			record("last_name", c.LastName, *input.LastName)
			c.LastName = *input.LastName
		}
		if input.BirthDate != nil {
			old := ""
			if c.BirthDate != nil {
				old = c.BirthDate.Format("2006-01-02")
			}
			record("birth_date", old, input.BirthDate.Format("2006-01-02"))
			c.BirthDate = input.BirthDate
		}
		if input.Status != nil {
			record("status", string(c.Status), string(*input.Status))
			c.Status = *input.Status
		}
		if input.PreferredStore != nil {
			record("preferred_store", c.PreferredStore, *input.PreferredStore)
			c.PreferredStore = *input.PreferredStore
		}
		if input.Segments != nil {
			record("segments", strings.Join(c.Segments, ","), strings.Join(input.Segments, ","))
			c.Segments = input.Segments
		}

		if len(changes) == 0 {
			updated = c
			return nil
		}

		c.Touch()
		if err := tx.UpdateCustomer(ctx, c); err != nil {
			return err
		}
		for _, entry := range changes {
			if err := tx.AppendCustomerChange(ctx, entry); err != nil {
				return err
			}
		}

		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCustomerUpdated(ctx, &before, updated)

	return updated, nil
}

// CustomerChanges returns the profile change history for a customer,
// newest first.
func (e *Engine) CustomerChanges(ctx context.Context, customerID id.CustomerID, opts customer.ListOpts) ([]*customer.ChangeEntry, error) {
	return e.store.ListCustomerChanges(ctx, customerID, opts)
}
