package extension

import (
	"time"

	"github.com/xraph/fundledger"
	audithook "github.com/xraph/fundledger/audit_hook"
	"github.com/xraph/fundledger/observability"
	"github.com/xraph/fundledger/plugin"
	"github.com/xraph/fundledger/store"
)

// Option configures the fundledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a fundledger.Option through to the underlying engine.
func WithLedgerOption(opt fundledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, fundledger.WithPlugin(p))
	}
}

// WithMetrics registers the metrics plugin on instruments from factory.
func WithMetrics(factory observability.MetricFactory) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, fundledger.WithPlugin(observability.NewMetricsExtension(factory)))
	}
}

// WithAuditRecorder registers the audit plugin writing to r.
func WithAuditRecorder(r audithook.Recorder, opts ...audithook.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, fundledger.WithPlugin(audithook.New(r, opts...)))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for fundledger routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithLockTimeout bounds how long a commit waits for its project guard.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.LockTimeout = d }
}

// WithMaxRetries sets how many optimistic conflicts are retried.
func WithMaxRetries(n uint) Option {
	return func(e *Extension) { e.config.MaxRetries = n }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
