package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// DefaultHookTimeout bounds a single plugin hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onProjectCreated     []OnProjectCreated
	onProjectFullyFunded []OnProjectFullyFunded
	onCommitmentAccepted []OnCommitmentAccepted
	onCommitmentAmended  []OnCommitmentAmended
	onCommitmentRejected []OnCommitmentRejected
	onGuardContention    []OnGuardContention
	onGuardReleased      []OnGuardReleased
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnProjectCreated); ok {
		r.onProjectCreated = append(r.onProjectCreated, v)
	}
	if v, ok := p.(OnProjectFullyFunded); ok {
		r.onProjectFullyFunded = append(r.onProjectFullyFunded, v)
	}
	if v, ok := p.(OnCommitmentAccepted); ok {
		r.onCommitmentAccepted = append(r.onCommitmentAccepted, v)
	}
	if v, ok := p.(OnCommitmentAmended); ok {
		r.onCommitmentAmended = append(r.onCommitmentAmended, v)
	}
	if v, ok := p.(OnCommitmentRejected); ok {
		r.onCommitmentRejected = append(r.onCommitmentRejected, v)
	}
	if v, ok := p.(OnGuardContention); ok {
		r.onGuardContention = append(r.onGuardContention, v)
	}
	if v, ok := p.(OnGuardReleased); ok {
		r.onGuardReleased = append(r.onGuardReleased, v)
	}

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, l)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitProjectCreated emits a project created event.
func (r *Registry) EmitProjectCreated(ctx context.Context, proj *project.Project) {
	r.mu.RLock()
	plugins := r.onProjectCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnProjectCreated", func() error {
			return p.OnProjectCreated(ctx, proj)
		})
	}
}

// EmitProjectFullyFunded emits a fully funded event.
func (r *Registry) EmitProjectFullyFunded(ctx context.Context, proj *project.Project, total types.Money) {
	r.mu.RLock()
	plugins := r.onProjectFullyFunded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnProjectFullyFunded", func() error {
			return p.OnProjectFullyFunded(ctx, proj, total)
		})
	}
}

// EmitCommitmentAccepted emits a commitment accepted event.
func (r *Registry) EmitCommitmentAccepted(ctx context.Context, c *commitment.Commitment) {
	r.mu.RLock()
	plugins := r.onCommitmentAccepted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCommitmentAccepted", func() error {
			return p.OnCommitmentAccepted(ctx, c)
		})
	}
}

// EmitCommitmentAmended emits a commitment amended event.
func (r *Registry) EmitCommitmentAmended(ctx context.Context, c *commitment.Commitment, previous types.Money) {
	r.mu.RLock()
	plugins := r.onCommitmentAmended
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCommitmentAmended", func() error {
			return p.OnCommitmentAmended(ctx, c, previous)
		})
	}
}

// EmitCommitmentRejected emits a commitment rejected event.
func (r *Registry) EmitCommitmentRejected(ctx context.Context, rej Rejection) {
	r.mu.RLock()
	plugins := r.onCommitmentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCommitmentRejected", func() error {
			return p.OnCommitmentRejected(ctx, rej)
		})
	}
}

// EmitGuardContention emits a guard contention event.
func (r *Registry) EmitGuardContention(ctx context.Context, projectID id.ProjectID, attempt int, cause error) {
	r.mu.RLock()
	plugins := r.onGuardContention
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnGuardContention", func() error {
			return p.OnGuardContention(ctx, projectID, attempt, cause)
		})
	}
}

// EmitGuardReleased emits a guard released event.
func (r *Registry) EmitGuardReleased(ctx context.Context, projectID id.ProjectID, elapsed time.Duration, attempts int) {
	r.mu.RLock()
	plugins := r.onGuardReleased
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnGuardReleased", func() error {
			return p.OnGuardReleased(ctx, projectID, elapsed, attempts)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the commitment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
