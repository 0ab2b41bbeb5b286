// Package store declares the persistence contract every fundledger backend
// implements.
//
// Reads outside WithinProject are snapshots for display. Every decision that
// depends on a project's committed total is made inside WithinProject, which
// gives the callback exclusive access to that project's funding state until
// it returns.
package store

import (
	"context"
	"time"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// TxFunc runs inside a guarded project scope. Returning a non-nil error
// discards every write made through tx.
type TxFunc func(ctx context.Context, tx ProjectTx) error

// TxOptions tunes a single guarded scope.
type TxOptions struct {
	// LockTimeout bounds how long the backend waits for the project guard.
	// Zero leaves the wait bounded only by ctx.
	LockTimeout time.Duration
}

// ProjectTx is the view of one project's funding state inside the guard.
type ProjectTx interface {
	// Project returns the guarded project as read at the start of the scope.
	Project() *project.Project

	// TotalCommitted sums the project's commitments, skipping exclude when
	// it is not nil.
	TotalCommitted(ctx context.Context, exclude id.CommitmentID) (types.Money, error)

	GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error)
	InsertCommitment(ctx context.Context, c *commitment.Commitment) error
	UpdateCommitment(ctx context.Context, c *commitment.Commitment) error
}

// Store is the unified storage interface for projects and commitments.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Project methods
	CreateProject(ctx context.Context, p *project.Project) error
	GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error)
	ListProjects(ctx context.Context, ownerID string, opts project.ListOpts) ([]*project.Project, error)

	// Commitment methods
	GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error)
	ListCommitments(ctx context.Context, opts commitment.ListOpts) ([]*commitment.Commitment, error)
	TotalCommitted(ctx context.Context, projectID id.ProjectID) (types.Money, error)

	// WithinProject runs fn with exclusive access to the project's funding
	// state. It returns fundledger.ErrProjectNotFound for an unknown project,
	// fundledger.ErrBusy when the guard is not acquired in time, and
	// fundledger.ErrConflict when an optimistic write lost a race.
	WithinProject(ctx context.Context, projectID id.ProjectID, opts TxOptions, fn TxFunc) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
