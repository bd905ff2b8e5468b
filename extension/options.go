package extension

import (
	"github.com/xraph/grove"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/notification"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/store/postgres"
	"github.com/xraph/loyalty/store/sqlite"
)

// Option configures the loyalty Forge extension.
type Option func(*Extension)

// WithStore sets the store for the loyalty engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPostgres builds a PostgreSQL store from the given grove database.
func WithPostgres(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = postgres.New(db)
	}
}

// WithSQLite builds a SQLite store from the given grove database.
func WithSQLite(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = sqlite.New(db)
	}
}

// WithEngineOption passes a loyalty.Option through to the underlying engine.
func WithEngineOption(opt loyalty.Option) Option {
	return func(e *Extension) {
		e.loyaltyOpts = append(e.loyaltyOpts, opt)
	}
}

// WithPlugin registers a loyalty plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.loyaltyOpts = append(e.loyaltyOpts, loyalty.WithPlugin(p))
	}
}

// WithSender sets the notification sender on the underlying engine.
func WithSender(s notification.Sender) Option {
	return func(e *Extension) {
		e.loyaltyOpts = append(e.loyaltyOpts, loyalty.WithSender(s))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithCurrency sets the currency code for balances and purchases.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithEarnRate sets the bonus earn rate in basis points.
func WithEarnRate(bp int64) Option {
	return func(e *Extension) { e.config.EarnRateBP = bp }
}

// WithDispatchBuffer sets the notification dispatch queue capacity.
func WithDispatchBuffer(size int) Option {
	return func(e *Extension) { e.config.DispatchBuffer = size }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
