// Package plugin provides an extensible plugin system for fundledger.
// Plugins hook into project and commitment lifecycle events to add
// metrics, auditing, or other observers without touching the engine.
//
// Hooks run after the guarded write has committed (or the call was
// rejected) and can never change the outcome.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Project hooks
// ──────────────────────────────────────────────────

// OnProjectCreated is called when a new project is registered.
type OnProjectCreated interface {
	Plugin
	OnProjectCreated(ctx context.Context, p *project.Project) error
}

// OnProjectFullyFunded is called when a commit brings the total to the goal.
type OnProjectFullyFunded interface {
	Plugin
	OnProjectFullyFunded(ctx context.Context, p *project.Project, total types.Money) error
}

// ──────────────────────────────────────────────────
// Commitment hooks
// ──────────────────────────────────────────────────

// OnCommitmentAccepted is called after a new commitment is recorded.
type OnCommitmentAccepted interface {
	Plugin
	OnCommitmentAccepted(ctx context.Context, c *commitment.Commitment) error
}

// OnCommitmentAmended is called after a commitment's amount changes.
type OnCommitmentAmended interface {
	Plugin
	OnCommitmentAmended(ctx context.Context, c *commitment.Commitment, previous types.Money) error
}

// Rejection describes a submit or amend call that changed nothing.
type Rejection struct {
	Operation    string
	ProjectID    id.ProjectID
	CommitmentID id.CommitmentID
	InvestorID   string
	Amount       string
	Kind         commitment.Kind
	Err          error
}

// OnCommitmentRejected is called when a submit or amend is rejected.
type OnCommitmentRejected interface {
	Plugin
	OnCommitmentRejected(ctx context.Context, r Rejection) error
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnGuardContention is called each time a guarded scope fails to acquire
// its project or loses an optimistic race.
type OnGuardContention interface {
	Plugin
	OnGuardContention(ctx context.Context, projectID id.ProjectID, attempt int, err error) error
}

// OnGuardReleased is called when a guarded scope that committed a write has
// finished. Elapsed covers every attempt, including waits and backoff.
type OnGuardReleased interface {
	Plugin
	OnGuardReleased(ctx context.Context, projectID id.ProjectID, elapsed time.Duration, attempts int) error
}
