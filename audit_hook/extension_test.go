package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/fundledger"
	audithook "github.com/xraph/fundledger/audit_hook"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/plugin"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store/memory"
	"github.com/xraph/fundledger/types"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captured) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func TestRejectionEvent(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)

	err := ext.OnCommitmentRejected(context.Background(), plugin.Rejection{
		Operation:  "submit",
		ProjectID:  id.NewProjectID(),
		InvestorID: "alice",
		Amount:     "600.01",
		Kind:       commitment.KindExceedsFundingGoal,
		Err:        fundledger.ErrExceedsFundingGoal,
	})
	if err != nil {
		t.Fatalf("OnCommitmentRejected: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("events: got %d, want 1", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != audithook.ActionCommitmentRejected || evt.Outcome != audithook.OutcomeFailure {
		t.Errorf("event: got %+v", evt)
	}
	if evt.Severity != audithook.SeverityWarning {
		t.Errorf("Severity: got %s, want warning", evt.Severity)
	}
	if evt.Metadata["kind"] != "ExceedsFundingGoal" {
		t.Errorf("kind: got %v", evt.Metadata["kind"])
	}
	if evt.ResourceID != "" {
		t.Errorf("ResourceID: got %q, want empty for submit", evt.ResourceID)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionGuardContention))

	ctx := context.Background()
	_ = ext.OnGuardContention(ctx, id.NewProjectID(), 1, fundledger.ErrConflict)
	_ = ext.OnProjectCreated(ctx, &project.Project{ID: id.NewProjectID(), FundingGoal: types.USD(100)})

	got := rec.actions()
	if len(got) != 1 || got[0] != audithook.ActionProjectCreated {
		t.Errorf("actions: got %v", got)
	}
}

func TestRecorderFailureDoesNotFailHook(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnProjectCreated(context.Background(), &project.Project{ID: id.NewProjectID()}); err != nil {
		t.Errorf("got %v, want nil", err)
	}
}

func TestLedgerLifecycleAudited(t *testing.T) {
	rec := &captured{}
	l := fundledger.New(memory.New(), fundledger.WithPlugin(audithook.New(rec)))
	ctx := context.Background()

	p := &project.Project{OwnerID: "owner", Title: "Bakery", FundingGoal: types.USD(100000)}
	if err := l.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	c, err := l.SubmitCommitment(ctx, "alice", p.ID, "600.00")
	if err != nil {
		t.Fatalf("SubmitCommitment: %v", err)
	}
	if _, err := l.AmendCommitment(ctx, c.ID, "1000.00"); err != nil {
		t.Fatalf("AmendCommitment: %v", err)
	}
	if _, err := l.SubmitCommitment(ctx, "bob", p.ID, "0.01"); !errors.Is(err, fundledger.ErrProjectFullyFunded) {
		t.Fatalf("late submit: got %v", err)
	}

	want := []string{
		audithook.ActionProjectCreated,
		audithook.ActionCommitmentAccepted,
		audithook.ActionCommitmentAmended,
		audithook.ActionProjectFullyFunded,
		audithook.ActionCommitmentRejected,
	}
	got := rec.actions()
	if len(got) != len(want) {
		t.Fatalf("actions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d]: got %s, want %s", i, got[i], want[i])
		}
	}
}
