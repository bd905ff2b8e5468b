package extension

// Config holds the loyalty extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.loyalty" or "loyalty" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Currency is the currency code all balances and purchases use
	// (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// EarnRateBP is the bonus earn rate in basis points of the
	// post-discount purchase amount (default: 100, i.e. 1%).
	EarnRateBP int64 `json:"earn_rate_bp" mapstructure:"earn_rate_bp" yaml:"earn_rate_bp"`

	// DispatchBuffer is the notification dispatch queue capacity
	// (default: 1024).
	DispatchBuffer int `json:"dispatch_buffer" mapstructure:"dispatch_buffer" yaml:"dispatch_buffer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:       "usd",
		EarnRateBP:     100,
		DispatchBuffer: 1024,
	}
}
