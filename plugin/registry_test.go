package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

type recorder struct {
	name  string
	calls []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnProjectCreated(_ context.Context, _ *project.Project) error {
	r.calls = append(r.calls, "created")
	return nil
}

func (r *recorder) OnCommitmentAccepted(_ context.Context, _ *commitment.Commitment) error {
	r.calls = append(r.calls, "accepted")
	return errors.New("sink down")
}

func (r *recorder) OnGuardReleased(_ context.Context, _ id.ProjectID, _ time.Duration, _ int) error {
	r.calls = append(r.calls, "released")
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnProjectFullyFunded(ctx context.Context, _ *project.Project, _ types.Money) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry().WithLogger(quiet())

	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if got := r.Count(); got != 1 {
		t.Errorf("Count: got %d, want 1", got)
	}
	if r.Get("a") == nil || r.Get("b") != nil {
		t.Error("Get returned the wrong plugin")
	}
}

func TestDispatchOnlyToImplementers(t *testing.T) {
	r := NewRegistry().WithLogger(quiet())
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(slow{}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitProjectCreated(ctx, &project.Project{})
	r.EmitCommitmentAccepted(ctx, &commitment.Commitment{})
	r.EmitCommitmentAmended(ctx, &commitment.Commitment{}, types.USD(1))
	r.EmitGuardReleased(ctx, id.NewProjectID(), time.Millisecond, 1)

	want := []string{"created", "accepted", "released"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, rec.calls[i], want[i])
		}
	}
}

func TestHookTimeoutBoundsSlowPlugins(t *testing.T) {
	r := NewRegistry().WithLogger(quiet()).WithTimeout(20 * time.Millisecond)
	if err := r.Register(slow{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitProjectFullyFunded(context.Background(), &project.Project{}, types.USD(100))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit blocked for %v despite a 20ms hook timeout", elapsed)
	}
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	r := NewRegistry().WithTimeout(0)
	if r.timeout != DefaultHookTimeout {
		t.Errorf("timeout: got %v, want %v", r.timeout, DefaultHookTimeout)
	}
}
