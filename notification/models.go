// Package notification defines customer notification records and the
// Sender used to deliver them. Delivery is best-effort: outcomes are
// recorded on the notification row, never propagated to the caller.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/loyalty/id"
)

// Channel is the delivery channel for a notification.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Status tracks a notification's delivery outcome.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one outbound message to a customer.
type Notification struct {
	ID         id.NotificationID `json:"id"`
	CustomerID id.CustomerID     `json:"customer_id"`
	Channel    Channel           `json:"channel"`
	Subject    string            `json:"subject,omitempty"`
	Message    string            `json:"message"`
	Status     Status            `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
}

// New creates a pending notification.
func New(customerID id.CustomerID, channel Channel, subject, message string) *Notification {
	return &Notification{
		ID:         id.NewNotificationID(),
		CustomerID: customerID,
		Channel:    channel,
		Subject:    subject,
		Message:    message,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkSent records a successful delivery.
func (n *Notification) MarkSent() {
	now := time.Now().UTC()
	n.Status = StatusSent
	n.SentAt = &now
	n.Error = ""
}

// MarkFailed records a failed delivery attempt.
func (n *Notification) MarkFailed(err error) {
	n.Status = StatusFailed
	n.Error = err.Error()
}

// Sender delivers a notification over its channel. Implementations
// bridge to an SMS gateway, SMTP relay, or push provider.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// SenderFunc adapts a plain function to a Sender.
type SenderFunc func(ctx context.Context, n *Notification) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// LogSender is the default Sender: it logs the message instead of
// delivering it.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, n *Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification dispatched",
		"customer_id", n.CustomerID.String(),
		"channel", string(n.Channel),
		"subject", n.Subject,
	)
	return nil
}
