package extension

import "time"

// Config holds the fundledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fundledger" or "fundledger" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for fundledger routes (default: "/fundledger").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// LockTimeout bounds how long a commit waits for its project guard
	// (default: 5s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// MaxRetries is how many times a commit that lost an optimistic race is
	// retried before Busy is returned (default: 5).
	MaxRetries uint `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`

	// RetryInitialInterval and RetryMaxInterval bound the backoff between
	// retries (defaults: 10ms and 250ms).
	RetryInitialInterval time.Duration `json:"retry_initial_interval" mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `json:"retry_max_interval" mapstructure:"retry_max_interval" yaml:"retry_max_interval"`

	// HookTimeout bounds each plugin hook call. Zero means no bound.
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:             "/fundledger",
		LockTimeout:          5 * time.Second,
		MaxRetries:           5,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     250 * time.Millisecond,
	}
}
