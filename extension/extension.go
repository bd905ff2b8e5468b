// Package extension provides the Forge extension adapter for the
// loyalty engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.loyalty" or "loyalty" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "loyalty"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Retail loyalty engine: bonus ledger, discount rules, purchase settlement"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the loyalty engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *loyalty.Engine
	store       store.Store
	loyaltyOpts []loyalty.Option
}

// New creates a new loyalty Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying loyalty engine.
// This is nil until Register is called.
func (e *Extension) Engine() *loyalty.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the loyalty engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := loyalty.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*loyalty.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("loyalty: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("loyalty: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs loyalty.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []loyalty.Option {
	opts := make([]loyalty.Option, 0, len(e.loyaltyOpts)+3)

	if e.config.Currency != "" {
		opts = append(opts, loyalty.WithCurrency(e.config.Currency))
	}
	if e.config.EarnRateBP > 0 {
		opts = append(opts, loyalty.WithEarnRate(e.config.EarnRateBP))
	}
	if e.config.DispatchBuffer > 0 {
		opts = append(opts, loyalty.WithDispatchBuffer(e.config.DispatchBuffer))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.loyaltyOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("loyalty: configuration is required but not found in config files; " +
				"ensure 'extensions.loyalty' or 'loyalty' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("loyalty: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("earn_rate_bp", e.config.EarnRateBP),
		forge.F("dispatch_buffer", e.config.DispatchBuffer),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.loyalty" first (namespaced pattern).
	if cm.IsSet("extensions.loyalty") {
		if err := cm.Bind("extensions.loyalty", &cfg); err == nil {
			e.Logger().Debug("loyalty: loaded config from file",
				forge.F("key", "extensions.loyalty"),
			)
			return cfg, true
		}
		e.Logger().Warn("loyalty: failed to bind extensions.loyalty config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "loyalty" key.
	if cm.IsSet("loyalty") {
		if err := cm.Bind("loyalty", &cfg); err == nil {
			e.Logger().Debug("loyalty: loaded config from file",
				forge.F("key", "loyalty"),
			)
			return cfg, true
		}
		e.Logger().Warn("loyalty: failed to bind loyalty config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.EarnRateBP == 0 {
		cfg.EarnRateBP = defaults.EarnRateBP
	}
	if cfg.DispatchBuffer == 0 {
		cfg.DispatchBuffer = defaults.DispatchBuffer
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.EarnRateBP == 0 && programmaticConfig.EarnRateBP != 0 {
		yamlConfig.EarnRateBP = programmaticConfig.EarnRateBP
	}
	if yamlConfig.DispatchBuffer == 0 && programmaticConfig.DispatchBuffer != 0 {
		yamlConfig.DispatchBuffer = programmaticConfig.DispatchBuffer
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
