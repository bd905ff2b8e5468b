package loyalty

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/store"
)

// Engine is the main loyalty engine: customer registry, bonus ledger,
// discount matching, and purchase settlement over a single store.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Notification dispatch
	sender       notification.Sender
	dispatchChan chan *notification.Notification
	stopChan     chan struct{}
	wg           sync.WaitGroup

	// Configuration
	currency   string
	earnRateBP int64
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		dispatchChan: make(chan *notification.Notification, 1024),
		stopChan:     make(chan struct{}),
		currency:     "usd",
		earnRateBP:   100, // 1% of the post-discount amount
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sender == nil {
		e.sender = notification.LogSender{Logger: e.logger}
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCurrency sets the currency all balances and purchases use.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = currency
	}
}

// WithEarnRate sets the bonus earn rate in basis points
// (100 = 1% of the post-discount purchase amount).
func WithEarnRate(bp int64) Option {
	return func(e *Engine) {
		e.earnRateBP = bp
	}
}

// WithSender sets the notification sender.
func WithSender(s notification.Sender) Option {
	return func(e *Engine) {
		e.sender = s
	}
}

// WithDispatchBuffer sets the notification dispatch queue capacity.
func WithDispatchBuffer(size int) Option {
	return func(e *Engine) {
		e.dispatchChan = make(chan *notification.Notification, size)
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.dispatchWorker(ctx)

	e.logger.Info("loyalty engine started",
		"currency", e.currency,
		"earn_rate_bp", e.earnRateBP,
	)

	return nil
}

// Stop shuts down the Engine, draining pending notifications.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Notification dispatch
// ──────────────────────────────────────────────────

// enqueueNotification queues a notification for background delivery.
// It never blocks: when the queue is full the notification is dropped
// with a warning. Dispatch happens strictly after the settlement that
// produced it has committed.
func (e *Engine) enqueueNotification(n *notification.Notification) {
	select {
	case e.dispatchChan <- n:
	default:
		e.logger.Warn("notification dispatch queue full, dropping",
			"customer_id", n.CustomerID.String(),
			"channel", string(n.Channel),
		)
	}
}

// dispatchWorker delivers queued notifications one at a time.
func (e *Engine) dispatchWorker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case n := <-e.dispatchChan:
					e.dispatch(ctx, n)
				default:
					return
				}
			}

		case n := <-e.dispatchChan:
			e.dispatch(ctx, n)
		}
	}
}

// dispatch records a notification, attempts delivery, and records the
// outcome. Failures are logged and stored on the row, never returned.
func (e *Engine) dispatch(ctx context.Context, n *notification.Notification) {
	if err := e.store.CreateNotification(ctx, n); err != nil {
		e.logger.Error("failed to record notification",
			"customer_id", n.CustomerID.String(),
			"error", err,
		)
		return
	}

	if err := e.sender.Send(ctx, n); err != nil {
		n.MarkFailed(err)
		e.plugins.EmitNotificationFailed(ctx, n, err)
		e.logger.Warn("notification delivery failed",
			"notification_id", n.ID.String(),
			"customer_id", n.CustomerID.String(),
			"error", err,
		)
	} else {
		n.MarkSent()
		e.plugins.EmitNotificationSent(ctx, n)
	}

	if err := e.store.UpdateNotification(ctx, n); err != nil {
		e.logger.Error("failed to update notification status",
			"notification_id", n.ID.String(),
			"error", err,
		)
	}
}
