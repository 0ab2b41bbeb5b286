package extension

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/fundledger"
	audithook "github.com/xraph/fundledger/audit_hook"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store/memory"
	"github.com/xraph/fundledger/types"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{LockTimeout: time.Second})

	if got.LockTimeout != time.Second {
		t.Errorf("LockTimeout: got %v, want 1s", got.LockTimeout)
	}
	if got.BasePath != "/fundledger" {
		t.Errorf("BasePath: got %q", got.BasePath)
	}
	if got.MaxRetries != 5 {
		t.Errorf("MaxRetries: got %d, want 5", got.MaxRetries)
	}
	if got.RetryInitialInterval != 10*time.Millisecond || got.RetryMaxInterval != 250*time.Millisecond {
		t.Errorf("retry intervals: got %v/%v", got.RetryInitialInterval, got.RetryMaxInterval)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{BasePath: "/funds", MaxRetries: 2}
	prog := Config{
		BasePath:       "/ignored",
		DisableRoutes:  true,
		LockTimeout:    750 * time.Millisecond,
		MaxRetries:     9,
		GroveDatabase:  "funding",
		HookTimeout:    time.Second,
		DisableMigrate: false,
	}

	got := mergeConfigurations(yaml, prog)

	tests := []struct {
		name string
		ok   bool
	}{
		{"yaml base path wins", got.BasePath == "/funds"},
		{"yaml retries win", got.MaxRetries == 2},
		{"programmatic lock timeout fills gap", got.LockTimeout == 750*time.Millisecond},
		{"programmatic grove database fills gap", got.GroveDatabase == "funding"},
		{"programmatic hook timeout fills gap", got.HookTimeout == time.Second},
		{"programmatic disable routes", got.DisableRoutes},
		{"migrate stays enabled", !got.DisableMigrate},
		{"defaults fill the rest", got.RetryMaxInterval == 250*time.Millisecond},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("%s: got %+v", tt.name, got)
		}
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/fundledger"},
		{"/", "/fundledger"},
		{"funds", "/funds"},
		{"/funds/", "/funds"},
		{" /api/funds ", "/api/funds"},
	}
	for _, tt := range tests {
		if got := normalizeBasePath(tt.in); got != tt.want {
			t.Errorf("normalizeBasePath(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionsApply(t *testing.T) {
	e := New(
		WithBasePath("/funds"),
		WithDisableRoutes(),
		WithDisableMigrate(),
		WithLockTimeout(2*time.Second),
		WithMaxRetries(3),
		WithHookTimeout(100*time.Millisecond),
		WithGroveDatabase("funding"),
		WithRequireConfig(true),
	)

	cfg := e.config
	if cfg.BasePath != "/funds" || !cfg.DisableRoutes || !cfg.DisableMigrate {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.LockTimeout != 2*time.Second || cfg.MaxRetries != 3 || cfg.HookTimeout != 100*time.Millisecond {
		t.Errorf("guard settings not applied: %+v", cfg)
	}
	if cfg.GroveDatabase != "funding" || !e.useGrove || !cfg.RequireConfig {
		t.Errorf("grove settings not applied: %+v useGrove=%v", cfg, e.useGrove)
	}
}

func TestBuildLedgerOptsWiresPlugins(t *testing.T) {
	var events []audithook.AuditEvent
	recorder := audithook.RecorderFunc(func(_ context.Context, ev *audithook.AuditEvent) error {
		events = append(events, *ev)
		return nil
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(
		WithStore(memory.New()),
		WithAuditRecorder(recorder),
		WithLedgerOption(fundledger.WithLogger(logger)),
	)
	e.config = mergeWithDefaults(e.config)

	opts := e.buildLedgerOpts()
	if len(opts) < 5 {
		t.Fatalf("options: got %d, want at least 5", len(opts))
	}

	l := fundledger.New(e.store, opts...)
	if got := l.Plugins().Count(); got != 1 {
		t.Fatalf("plugins: got %d, want 1", got)
	}

	p := &project.Project{OwnerID: "owner", Title: "Wind", FundingGoal: types.USD(100000)}
	if err := l.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if len(events) != 1 || events[0].Action != audithook.ActionProjectCreated {
		t.Errorf("audit events: got %+v", events)
	}
}

func TestStopWithoutEngine(t *testing.T) {
	e := New()
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := e.Health(context.Background()); err == nil {
		t.Error("Health: expected error without a store")
	}
}
