// Package audithook bridges fundledger lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/plugin"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnProjectCreated     = (*Extension)(nil)
	_ plugin.OnProjectFullyFunded = (*Extension)(nil)
	_ plugin.OnCommitmentAccepted = (*Extension)(nil)
	_ plugin.OnCommitmentAmended  = (*Extension)(nil)
	_ plugin.OnCommitmentRejected = (*Extension)(nil)
	_ plugin.OnGuardContention    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges fundledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Project hooks
// ──────────────────────────────────────────────────

// OnProjectCreated implements plugin.OnProjectCreated.
func (e *Extension) OnProjectCreated(ctx context.Context, p *project.Project) error {
	return e.record(ctx, ActionProjectCreated, SeverityInfo, OutcomeSuccess,
		ResourceProject, p.ID.String(), CategoryFunding, nil,
		"owner_id", p.OwnerID,
		"funding_goal", p.FundingGoal.FormatMajor(),
		"currency", p.Currency,
	)
}

// OnProjectFullyFunded implements plugin.OnProjectFullyFunded.
func (e *Extension) OnProjectFullyFunded(ctx context.Context, p *project.Project, total types.Money) error {
	return e.record(ctx, ActionProjectFullyFunded, SeverityInfo, OutcomeSuccess,
		ResourceProject, p.ID.String(), CategoryFunding, nil,
		"funding_goal", p.FundingGoal.FormatMajor(),
		"total_committed", total.FormatMajor(),
	)
}

// ──────────────────────────────────────────────────
// Commitment hooks
// ──────────────────────────────────────────────────

// OnCommitmentAccepted implements plugin.OnCommitmentAccepted.
func (e *Extension) OnCommitmentAccepted(ctx context.Context, c *commitment.Commitment) error {
	return e.record(ctx, ActionCommitmentAccepted, SeverityInfo, OutcomeSuccess,
		ResourceCommitment, c.ID.String(), CategoryInvestment, nil,
		"project_id", c.ProjectID.String(),
		"investor_id", c.InvestorID,
		"amount", c.Amount.FormatMajor(),
		"investment_share", c.InvestmentShare.StringFixed(2),
	)
}

// OnCommitmentAmended implements plugin.OnCommitmentAmended.
func (e *Extension) OnCommitmentAmended(ctx context.Context, c *commitment.Commitment, previous types.Money) error {
	return e.record(ctx, ActionCommitmentAmended, SeverityInfo, OutcomeSuccess,
		ResourceCommitment, c.ID.String(), CategoryInvestment, nil,
		"project_id", c.ProjectID.String(),
		"investor_id", c.InvestorID,
		"previous_amount", previous.FormatMajor(),
		"amount", c.Amount.FormatMajor(),
		"investment_share", c.InvestmentShare.StringFixed(2),
	)
}

// OnCommitmentRejected implements plugin.OnCommitmentRejected. Internal
// failures are recorded as errors; every other kind is a business rejection.
func (e *Extension) OnCommitmentRejected(ctx context.Context, r plugin.Rejection) error {
	severity := SeverityWarning
	if r.Kind == commitment.KindInternal {
		severity = SeverityError
	}

	return e.record(ctx, ActionCommitmentRejected, severity, OutcomeFailure,
		ResourceCommitment, r.CommitmentID.String(), CategoryInvestment, r.Err,
		"operation", r.Operation,
		"project_id", r.ProjectID.String(),
		"investor_id", r.InvestorID,
		"amount", r.Amount,
		"kind", string(r.Kind),
	)
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnGuardContention implements plugin.OnGuardContention.
func (e *Extension) OnGuardContention(ctx context.Context, projectID id.ProjectID, attempt int, err error) error {
	return e.record(ctx, ActionGuardContention, SeverityWarning, OutcomeFailure,
		ResourceProject, projectID.String(), CategoryConcurrency, err,
		"attempt", attempt,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
