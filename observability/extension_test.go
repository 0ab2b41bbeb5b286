package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/observability"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store/memory"
	"github.com/xraph/fundledger/types"
)

func TestMetricsFromLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)
	metrics := observability.NewMetricsExtension(factory)

	l := fundledger.New(memory.New(), fundledger.WithPlugin(metrics))
	ctx := context.Background()

	p := &project.Project{OwnerID: "owner", Title: "Library", FundingGoal: types.USD(100000)}
	if err := l.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := l.SubmitCommitment(ctx, "alice", p.ID, "600.00"); err != nil {
		t.Fatalf("SubmitCommitment: %v", err)
	}
	if _, err := l.SubmitCommitment(ctx, "bob", p.ID, "400.01"); !errors.Is(err, fundledger.ErrExceedsFundingGoal) {
		t.Fatalf("over goal: got %v", err)
	}
	if _, err := l.SubmitCommitment(ctx, "owner", p.ID, "1.00"); !errors.Is(err, fundledger.ErrSelfInvestment) {
		t.Fatalf("self investment: got %v", err)
	}
	if _, err := l.SubmitCommitment(ctx, "bob", p.ID, "400.00"); err != nil {
		t.Fatalf("SubmitCommitment: %v", err)
	}

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"created", metrics.ProjectCreated.(prometheus.Counter), 1},
		{"accepted", metrics.CommitmentAccepted.(prometheus.Counter), 2},
		{"fully funded", metrics.ProjectFullyFunded.(prometheus.Counter), 1},
		{"exceeds", metrics.Rejected(commitment.KindExceedsFundingGoal).(prometheus.Counter), 1},
		{"self", metrics.Rejected(commitment.KindSelfInvestment).(prometheus.Counter), 1},
		{"busy", metrics.Rejected(commitment.KindBusy).(prometheus.Counter), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	a := f.Counter("fundledger.test.counter")
	b := f.Counter("fundledger.test.counter")
	a.Inc()
	b.Add(2)

	if got := testutil.ToFloat64(a.(prometheus.Counter)); got != 3 {
		t.Errorf("counter: got %v, want 3", got)
	}

	n, err := testutil.GatherAndCount(reg, "fundledger_test_counter")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("series: got %d, want 1", n)
	}
}
