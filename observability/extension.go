// Package observability provides a metrics extension for fundledger that
// records commitment and guard lifecycle metrics via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/plugin"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnProjectCreated     = (*MetricsExtension)(nil)
	_ plugin.OnProjectFullyFunded = (*MetricsExtension)(nil)
	_ plugin.OnCommitmentAccepted = (*MetricsExtension)(nil)
	_ plugin.OnCommitmentAmended  = (*MetricsExtension)(nil)
	_ plugin.OnCommitmentRejected = (*MetricsExtension)(nil)
	_ plugin.OnGuardContention    = (*MetricsExtension)(nil)
	_ plugin.OnGuardReleased      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide funding metrics.
// Register it as a fundledger plugin to track commitments automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Project metrics
	ProjectCreated     Counter
	ProjectFullyFunded Counter

	// Commitment metrics
	CommitmentAccepted Counter
	CommitmentAmended  Counter
	CommitmentAmount   Histogram

	// Guard metrics
	GuardContention Counter
	GuardLatency    Histogram
	GuardAttempts   Histogram

	// rejected is keyed by commitment.Kind
	rejected map[commitment.Kind]Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		ProjectCreated:     factory.Counter("fundledger.project.created"),
		ProjectFullyFunded: factory.Counter("fundledger.project.fully_funded"),

		CommitmentAccepted: factory.Counter("fundledger.commitment.accepted"),
		CommitmentAmended:  factory.Counter("fundledger.commitment.amended"),
		CommitmentAmount:   factory.Histogram("fundledger.commitment.amount"),

		GuardContention: factory.Counter("fundledger.guard.contention"),
		GuardLatency:    factory.Histogram("fundledger.guard.latency_ms"),
		GuardAttempts:   factory.Histogram("fundledger.guard.attempts"),

		rejected: make(map[commitment.Kind]Counter),
	}

	for _, k := range rejectionKinds {
		m.rejected[k] = factory.Counter("fundledger.commitment.rejected." + string(k))
	}
	return m
}

var rejectionKinds = []commitment.Kind{
	commitment.KindAmountRequired,
	commitment.KindAmountInvalid,
	commitment.KindAmountMustBePositive,
	commitment.KindSelfInvestment,
	commitment.KindExceedsFundingGoal,
	commitment.KindProjectFullyFunded,
	commitment.KindImmutableFieldChanged,
	commitment.KindBusy,
	commitment.KindNotFound,
	commitment.KindInvalid,
	commitment.KindInternal,
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// Rejected returns the rejection counter for a kind, or nil for unknown kinds.
func (m *MetricsExtension) Rejected(kind commitment.Kind) Counter {
	return m.rejected[kind]
}

// ──────────────────────────────────────────────────
// Project hooks
// ──────────────────────────────────────────────────

// OnProjectCreated implements plugin.OnProjectCreated.
func (m *MetricsExtension) OnProjectCreated(_ context.Context, _ *project.Project) error {
	m.ProjectCreated.Inc()
	return nil
}

// OnProjectFullyFunded implements plugin.OnProjectFullyFunded.
func (m *MetricsExtension) OnProjectFullyFunded(_ context.Context, _ *project.Project, _ types.Money) error {
	m.ProjectFullyFunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Commitment hooks
// ──────────────────────────────────────────────────

// OnCommitmentAccepted implements plugin.OnCommitmentAccepted.
func (m *MetricsExtension) OnCommitmentAccepted(_ context.Context, c *commitment.Commitment) error {
	m.CommitmentAccepted.Inc()
	m.CommitmentAmount.Observe(c.Amount.Decimal().InexactFloat64())
	return nil
}

// OnCommitmentAmended implements plugin.OnCommitmentAmended.
func (m *MetricsExtension) OnCommitmentAmended(_ context.Context, _ *commitment.Commitment, _ types.Money) error {
	m.CommitmentAmended.Inc()
	return nil
}

// OnCommitmentRejected implements plugin.OnCommitmentRejected.
func (m *MetricsExtension) OnCommitmentRejected(_ context.Context, r plugin.Rejection) error {
	if c, ok := m.rejected[r.Kind]; ok {
		c.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnGuardContention implements plugin.OnGuardContention.
func (m *MetricsExtension) OnGuardContention(_ context.Context, _ id.ProjectID, _ int, _ error) error {
	m.GuardContention.Inc()
	return nil
}

// OnGuardReleased implements plugin.OnGuardReleased.
func (m *MetricsExtension) OnGuardReleased(_ context.Context, _ id.ProjectID, elapsed time.Duration, attempts int) error {
	m.GuardLatency.Observe(float64(elapsed.Milliseconds()))
	m.GuardAttempts.Observe(float64(attempts))
	return nil
}
