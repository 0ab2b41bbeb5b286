package fundledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/plugin"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/share"
	"github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/types"
)

const instrumentationName = "github.com/xraph/fundledger"

// Defaults for the concurrency guard.
const (
	DefaultLockTimeout  = 5 * time.Second
	DefaultMaxRetries   = 5
	DefaultRetryInitial = 10 * time.Millisecond
	DefaultRetryMax     = 250 * time.Millisecond
)

// Ledger is the commitment engine. It owns the funding invariant of every
// project in its store: the committed total never exceeds the goal.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer

	// Guard configuration
	lockTimeout  time.Duration
	maxRetries   uint
	retryInitial time.Duration
	retryMax     time.Duration
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		tracer:       otel.Tracer(instrumentationName),
		lockTimeout:  DefaultLockTimeout,
		maxRetries:   DefaultMaxRetries,
		retryInitial: DefaultRetryInitial,
		retryMax:     DefaultRetryMax,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration skipped", "plugin", p.Name(), "error", err)
		}
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithLockTimeout bounds how long a commit waits for its project guard.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.lockTimeout = d
	}
}

// WithMaxRetries sets how many times a commit lost to an optimistic
// conflict is retried before ErrBusy is returned.
func WithMaxRetries(n uint) Option {
	return func(l *Ledger) {
		l.maxRetries = n
	}
}

// WithRetryBackoff sets the exponential backoff bounds between retries.
func WithRetryBackoff(initial, maxInterval time.Duration) Option {
	return func(l *Ledger) {
		l.retryInitial = initial
		l.retryMax = maxInterval
	}
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Ledger) {
		l.tracer = t
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Logger returns the engine's logger.
func (l *Ledger) Logger() *slog.Logger { return l.logger }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("fundledger: migrate: %w", err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("fundledger started",
		"lock_timeout", l.lockTimeout,
		"max_retries", l.maxRetries,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (l *Ledger) Stop(ctx context.Context) error {
	l.plugins.EmitShutdown(ctx)
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Project Management
// ──────────────────────────────────────────────────

// CreateProject registers a project. The funding goal is fixed from here on.
func (l *Ledger) CreateProject(ctx context.Context, p *project.Project) error {
	ctx, span := l.tracer.Start(ctx, "fundledger.CreateProject")
	defer span.End()

	p.OwnerID = strings.TrimSpace(p.OwnerID)
	p.Title = strings.TrimSpace(p.Title)
	if err := ValidateProject(p); err != nil {
		span.SetStatus(codes.Error, "invalid project")
		return err
	}

	if p.ID.IsNil() {
		p.ID = id.NewProjectID()
	}
	p.Currency = p.FundingGoal.Currency
	p.Version = 0
	p.Entity = types.NewEntity()

	if err := l.store.CreateProject(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.String("fundledger.project_id", p.ID.String()))
	l.logger.Info("project created",
		"project_id", p.ID.String(),
		"owner_id", p.OwnerID,
		"funding_goal", p.FundingGoal.FormatMajor(),
		"currency", p.Currency,
	)

	l.plugins.EmitProjectCreated(ctx, p)
	return nil
}

// GetProject retrieves a project by ID.
func (l *Ledger) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	return l.store.GetProject(ctx, projectID)
}

// ListProjects lists projects, optionally restricted to one owner.
func (l *Ledger) ListProjects(ctx context.Context, ownerID string, opts project.ListOpts) ([]*project.Project, error) {
	return l.store.ListProjects(ctx, ownerID, opts)
}

// TotalCommitted returns a snapshot of the project's committed total. It is
// for display only; commit decisions re-read the total inside the guard.
func (l *Ledger) TotalCommitted(ctx context.Context, projectID id.ProjectID) (types.Money, error) {
	if _, err := l.store.GetProject(ctx, projectID); err != nil {
		return types.Money{}, err
	}
	return l.store.TotalCommitted(ctx, projectID)
}

// Headroom returns a snapshot of the amount still open for commitment.
func (l *Ledger) Headroom(ctx context.Context, projectID id.ProjectID) (types.Money, error) {
	p, err := l.store.GetProject(ctx, projectID)
	if err != nil {
		return types.Money{}, err
	}

	total, err := l.store.TotalCommitted(ctx, projectID)
	if err != nil {
		return types.Money{}, err
	}

	return p.FundingGoal.Subtract(total), nil
}

// Funding summarizes a project's funding state from a single listing of its
// commitments.
func (l *Ledger) Funding(ctx context.Context, projectID id.ProjectID) (*project.Funding, error) {
	p, err := l.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	commitments, err := l.store.ListCommitments(ctx, commitment.ListOpts{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	total := types.Zero(p.Currency)
	shares := share.Sum()
	for _, c := range commitments {
		total = total.Add(c.Amount)
		shares = shares.Add(c.InvestmentShare)
	}

	return &project.Funding{
		ProjectID:   p.ID,
		Goal:        p.FundingGoal,
		Total:       total,
		Headroom:    p.FundingGoal.Subtract(total),
		FullyFunded: total.Amount >= p.FundingGoal.Amount,
		Commitments: len(commitments),
		ShareSum:    share.Format(shares),
	}, nil
}

// ──────────────────────────────────────────────────
// Commitments
// ──────────────────────────────────────────────────

// GetCommitment retrieves a commitment by ID.
func (l *Ledger) GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	return l.store.GetCommitment(ctx, commitmentID)
}

// ListCommitments lists commitments by project and/or investor.
func (l *Ledger) ListCommitments(ctx context.Context, opts commitment.ListOpts) ([]*commitment.Commitment, error) {
	return l.store.ListCommitments(ctx, opts)
}

// SubmitCommitment records a new commitment of amount by investorID toward
// projectID. The amount is parsed before the project guard is taken; the
// remaining validation, the funding check and the write happen under it.
// Any rejection leaves the store unchanged.
func (l *Ledger) SubmitCommitment(ctx context.Context, investorID string, projectID id.ProjectID, amount string) (*commitment.Commitment, error) {
	investorID = strings.TrimSpace(investorID)
	ctx, span := l.tracer.Start(ctx, "fundledger.SubmitCommitment", trace.WithAttributes(
		attribute.String("fundledger.project_id", projectID.String()),
		attribute.String("fundledger.investor_id", investorID),
	))
	defer span.End()

	var (
		created *commitment.Commitment
		proj    *project.Project
		after   types.Money
	)

	parsed := PreparseAmount(amount)
	err := l.guarded(ctx, projectID, func(ctx context.Context, tx store.ProjectTx) error {
		p := tx.Project()

		amt, err := Validate(Proposal{InvestorID: investorID, Project: p, Amount: amount, Parsed: parsed})
		if err != nil {
			return err
		}

		base, err := tx.TotalCommitted(ctx, id.Nil)
		if err != nil {
			return err
		}
		if err := checkHeadroom(p.FundingGoal, base, amt); err != nil {
			return err
		}

		c := &commitment.Commitment{
			Entity:          types.NewEntity(),
			ID:              id.NewCommitmentID(),
			ProjectID:       p.ID,
			InvestorID:      investorID,
			Amount:          amt,
			InvestmentShare: share.Compute(amt, p.FundingGoal),
		}
		if err := tx.InsertCommitment(ctx, c); err != nil {
			return err
		}

		created, proj, after = c, p, base.Add(amt)
		return nil
	})
	if err != nil {
		return nil, l.reject(ctx, span, plugin.Rejection{
			Operation:  "submit",
			ProjectID:  projectID,
			InvestorID: investorID,
			Amount:     amount,
		}, err)
	}

	span.SetAttributes(
		attribute.String("fundledger.commitment_id", created.ID.String()),
		attribute.String("fundledger.amount", created.Amount.FormatMajor()),
	)
	l.logger.Info("commitment accepted",
		"commitment_id", created.ID.String(),
		"project_id", projectID.String(),
		"investor_id", created.InvestorID,
		"amount", created.Amount.FormatMajor(),
		"share", share.Format(created.InvestmentShare),
		"total", after.FormatMajor(),
	)

	l.plugins.EmitCommitmentAccepted(ctx, created)
	l.notifyFullyFunded(ctx, proj, after)

	return created, nil
}

// AmendCommitment changes the amount of an existing commitment. The new
// amount must fit within goal - (total - old amount).
func (l *Ledger) AmendCommitment(ctx context.Context, commitmentID id.CommitmentID, newAmount string) (*commitment.Commitment, error) {
	return l.AmendCommitmentFields(ctx, commitmentID, commitment.Amendment{Amount: newAmount})
}

// AmendCommitmentFields amends a commitment from a full change request. Any
// attempt to change the investor or project is rejected with
// ErrImmutableFieldChanged. A rejected amend keeps the stored amount.
func (l *Ledger) AmendCommitmentFields(ctx context.Context, commitmentID id.CommitmentID, change commitment.Amendment) (*commitment.Commitment, error) {
	ctx, span := l.tracer.Start(ctx, "fundledger.AmendCommitment", trace.WithAttributes(
		attribute.String("fundledger.commitment_id", commitmentID.String()),
	))
	defer span.End()

	rej := plugin.Rejection{
		Operation:    "amend",
		CommitmentID: commitmentID,
		InvestorID:   change.InvestorID,
		Amount:       change.Amount,
	}

	snapshot, err := l.store.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, l.reject(ctx, span, rej, err)
	}
	rej.ProjectID = snapshot.ProjectID
	span.SetAttributes(attribute.String("fundledger.project_id", snapshot.ProjectID.String()))

	var (
		updated  *commitment.Commitment
		previous types.Money
		proj     *project.Project
		after    types.Money
	)

	parsed := PreparseAmount(change.Amount)
	err = l.guarded(ctx, snapshot.ProjectID, func(ctx context.Context, tx store.ProjectTx) error {
		p := tx.Project()

		existing, err := tx.GetCommitment(ctx, commitmentID)
		if err != nil {
			return err
		}

		amt, err := Validate(Proposal{Project: p, Amount: change.Amount, Parsed: parsed, Existing: existing, Change: &change})
		if err != nil {
			return err
		}

		base, err := tx.TotalCommitted(ctx, existing.ID)
		if err != nil {
			return err
		}
		if err := checkHeadroom(p.FundingGoal, base, amt); err != nil {
			return err
		}

		next := *existing
		next.Amount = amt
		next.InvestmentShare = share.Compute(amt, p.FundingGoal)
		next.Touch()
		if err := tx.UpdateCommitment(ctx, &next); err != nil {
			return err
		}

		updated, previous, proj, after = &next, existing.Amount, p, base.Add(amt)
		return nil
	})
	if err != nil {
		rej.InvestorID = snapshot.InvestorID
		return nil, l.reject(ctx, span, rej, err)
	}

	l.logger.Info("commitment amended",
		"commitment_id", updated.ID.String(),
		"project_id", updated.ProjectID.String(),
		"previous", previous.FormatMajor(),
		"amount", updated.Amount.FormatMajor(),
		"share", share.Format(updated.InvestmentShare),
		"total", after.FormatMajor(),
	)

	l.plugins.EmitCommitmentAmended(ctx, updated, previous)
	l.notifyFullyFunded(ctx, proj, after)

	return updated, nil
}

// ──────────────────────────────────────────────────
// Concurrency guard
// ──────────────────────────────────────────────────

// guarded runs fn inside the store's project scope. Optimistic conflicts
// are retried with exponential backoff up to maxRetries times. Exhaustion,
// lock timeouts and a context deadline reached while guarding all surface
// as ErrBusy.
func (l *Ledger) guarded(ctx context.Context, projectID id.ProjectID, fn store.TxFunc) error {
	start := time.Now()
	attempts := 0
	opts := store.TxOptions{LockTimeout: l.lockTimeout}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := l.store.WithinProject(ctx, projectID, opts, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrConflict):
			l.logger.Debug("guard conflict", "project_id", projectID.String(), "attempt", attempts, "error", err)
			l.plugins.EmitGuardContention(ctx, projectID, attempts, err)
			return struct{}{}, err
		case errors.Is(err, ErrBusy):
			l.plugins.EmitGuardContention(ctx, projectID, attempts, err)
			return struct{}{}, backoff.Permanent(err)
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxTries(l.maxRetries+1),
	)

	switch {
	case err == nil, errors.Is(err, ErrBusy):
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("%w: gave up after %d attempts: %w", ErrBusy, attempts, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: deadline reached after %d attempts: %w", ErrBusy, attempts, err)
	}
	if err == nil {
		l.plugins.EmitGuardReleased(ctx, projectID, time.Since(start), attempts)
	}
	return err
}

func (l *Ledger) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInitial
	b.MaxInterval = l.retryMax
	return b
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// reject logs, traces, and announces a failed submit or amend, then returns
// err unchanged.
func (l *Ledger) reject(ctx context.Context, span trace.Span, rej plugin.Rejection, err error) error {
	rej.Kind = KindOf(err)
	rej.Err = err
	rej.Amount = types.ClipAmount(rej.Amount)

	span.SetAttributes(attribute.String("fundledger.rejection_kind", string(rej.Kind)))
	attrs := []any{
		"operation", rej.Operation,
		"kind", rej.Kind,
		"project_id", rej.ProjectID.String(),
		"error", err,
	}
	if !rej.CommitmentID.IsNil() {
		attrs = append(attrs, "commitment_id", rej.CommitmentID.String())
	}

	switch rej.Kind {
	case commitment.KindInternal:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("commitment failed", attrs...)
	case commitment.KindBusy:
		span.SetStatus(codes.Error, "busy")
		l.logger.Warn("commitment rejected", attrs...)
	default:
		l.logger.Info("commitment rejected", attrs...)
	}

	l.plugins.EmitCommitmentRejected(ctx, rej)
	return err
}

func (l *Ledger) notifyFullyFunded(ctx context.Context, p *project.Project, total types.Money) {
	if p == nil || total.Amount < p.FundingGoal.Amount {
		return
	}

	l.logger.Info("project fully funded",
		"project_id", p.ID.String(),
		"funding_goal", p.FundingGoal.FormatMajor(),
	)
	l.plugins.EmitProjectFullyFunded(ctx, p, total)
}
