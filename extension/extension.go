// Package extension provides the Forge extension adapter for fundledger.
//
// It implements the forge.Extension interface to integrate the commitment
// engine into a Forge application with automatic dependency discovery,
// DI registration, route mounting, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.fundledger" or
// "fundledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/api"
	"github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/store/memory"
	"github.com/xraph/fundledger/store/mongo"
	"github.com/xraph/fundledger/store/postgres"
	"github.com/xraph/fundledger/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fundledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Investment commitment ledger with funding-goal enforcement"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts fundledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *fundledger.Ledger
	store      store.Store
	ledgerOpts []fundledger.Option
	useGrove   bool
}

// New creates a new fundledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *fundledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration, resolves
// the store, initializes the engine, registers it in the DI container, and
// mounts the HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && (e.useGrove || e.config.GroveDatabase != "") {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = fundledger.New(e.store, e.buildLedgerOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*fundledger.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	return e.mountRoutes(fapp)
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("fundledger: extension not initialized")
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
func (e *Extension) Stop(ctx context.Context) error {
	defer e.MarkStopped()

	if e.engine != nil {
		return e.engine.Stop(ctx)
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("fundledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs fundledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []fundledger.Option {
	opts := make([]fundledger.Option, 0, len(e.ledgerOpts)+4)

	opts = append(opts,
		fundledger.WithLockTimeout(e.config.LockTimeout),
		fundledger.WithMaxRetries(e.config.MaxRetries),
		fundledger.WithRetryBackoff(e.config.RetryInitialInterval, e.config.RetryMaxInterval),
	)
	if e.config.HookTimeout > 0 {
		opts = append(opts, fundledger.WithHookTimeout(e.config.HookTimeout))
	}

	// Append any pass-through options last so they win.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// resolveGroveStore builds a store over the grove.DB registered in the
// container, picking the backend from the driver name.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if name := e.config.GroveDatabase; name != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), name)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("fundledger: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	s, err := storeFor(db)
	if err != nil {
		return nil, err
	}

	e.Logger().Debug("fundledger: store resolved from grove",
		forge.F("grove_database", e.config.GroveDatabase),
		forge.F("driver", db.Driver().Name()),
	)
	return s, nil
}

// storeFor picks the store backend matching db's driver.
func storeFor(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg", "postgres":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("fundledger: unsupported grove driver %q", name)
	}
}

// mountRoutes serves the API under the configured base path.
func (e *Extension) mountRoutes(fapp forge.App) error {
	base := normalizeBasePath(e.config.BasePath)
	h := api.New(e.engine, api.WithLogger(e.engine.Logger())).Handler()

	if err := fapp.Router().Handle(base+"/*filepath", http.StripPrefix(base, h)); err != nil {
		return fmt.Errorf("fundledger: mount routes at %s: %w", base, err)
	}

	e.Logger().Debug("fundledger: routes mounted", forge.F("base_path", base))
	return nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return DefaultConfig().BasePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("fundledger: configuration is required but not found in config files; " +
				"ensure 'extensions.fundledger' or 'fundledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("fundledger: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("lock_timeout", e.config.LockTimeout),
		forge.F("max_retries", e.config.MaxRetries),
		forge.F("hook_timeout", e.config.HookTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.fundledger", "fundledger"} {
		if !cm.IsSet(key) {
			continue
		}

		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("fundledger: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}

		e.Logger().Debug("fundledger: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if cfg.RetryMaxInterval == 0 {
		cfg.RetryMaxInterval = defaults.RetryMaxInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.GroveDatabase == "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.LockTimeout == 0 {
		yamlConfig.LockTimeout = programmaticConfig.LockTimeout
	}
	if yamlConfig.MaxRetries == 0 {
		yamlConfig.MaxRetries = programmaticConfig.MaxRetries
	}
	if yamlConfig.RetryInitialInterval == 0 {
		yamlConfig.RetryInitialInterval = programmaticConfig.RetryInitialInterval
	}
	if yamlConfig.RetryMaxInterval == 0 {
		yamlConfig.RetryMaxInterval = programmaticConfig.RetryMaxInterval
	}
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
