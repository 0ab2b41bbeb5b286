package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/store/sqlite"
	"github.com/xraph/fundledger/types"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, filepath.Join(t.TempDir(), "fundledger.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}

	s := sqlite.New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProject(t *testing.T, s *sqlite.Store, goalCents int64) *project.Project {
	t.Helper()

	p := &project.Project{
		Entity:      types.NewEntity(),
		ID:          id.NewProjectID(),
		OwnerID:     "owner",
		Title:       "Community wind",
		Currency:    "usd",
		FundingGoal: types.USD(goalCents),
		Metadata:    map[string]string{"region": "north"},
	}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func TestProjectCRUD(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedProject(t, s, 100000)

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if !got.FundingGoal.Equal(p.FundingGoal) || got.Metadata["region"] != "north" {
		t.Errorf("GetProject: got %+v", got)
	}

	if _, err := s.GetProject(ctx, id.NewProjectID()); !errors.Is(err, fundledger.ErrProjectNotFound) {
		t.Errorf("missing project: got %v", err)
	}

	if err := s.CreateProject(ctx, p); !errors.Is(err, fundledger.ErrAlreadyExists) {
		t.Errorf("duplicate project: got %v", err)
	}

	list, err := s.ListProjects(ctx, "owner", project.ListOpts{})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListProjects: got %d, want 1", len(list))
	}
}

func TestWithinProjectCommitAndRollback(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedProject(t, s, 100000)

	c := &commitment.Commitment{
		Entity:     types.NewEntity(),
		ID:         id.NewCommitmentID(),
		ProjectID:  p.ID,
		InvestorID: "alice",
		Amount:     types.USD(60000),
	}
	err := s.WithinProject(ctx, p.ID, store.TxOptions{}, func(ctx context.Context, tx store.ProjectTx) error {
		return tx.InsertCommitment(ctx, c)
	})
	if err != nil {
		t.Fatalf("commit scope: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithinProject(ctx, p.ID, store.TxOptions{}, func(ctx context.Context, tx store.ProjectTx) error {
		if err := tx.InsertCommitment(ctx, &commitment.Commitment{
			Entity:     types.NewEntity(),
			ID:         id.NewCommitmentID(),
			ProjectID:  p.ID,
			InvestorID: "bob",
			Amount:     types.USD(10000),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("rollback scope: got %v, want boom", err)
	}

	total, err := s.TotalCommitted(ctx, p.ID)
	if err != nil {
		t.Fatalf("TotalCommitted: %v", err)
	}
	if total.Amount != 60000 {
		t.Errorf("TotalCommitted: got %d, want 60000", total.Amount)
	}

	err = s.WithinProject(ctx, p.ID, store.TxOptions{}, func(ctx context.Context, tx store.ProjectTx) error {
		rest, err := tx.TotalCommitted(ctx, c.ID)
		if err != nil {
			return err
		}
		if !rest.IsZero() {
			t.Errorf("TotalCommitted excluding: got %d, want 0", rest.Amount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exclude scope: %v", err)
	}

	if err := s.WithinProject(ctx, id.NewProjectID(), store.TxOptions{}, func(context.Context, store.ProjectTx) error {
		return nil
	}); !errors.Is(err, fundledger.ErrProjectNotFound) {
		t.Errorf("unknown project: got %v", err)
	}
}

func TestLedgerOverSQLite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	l := fundledger.New(s, fundledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	p := &project.Project{OwnerID: "owner", Title: "Clinic", FundingGoal: types.USD(100000)}
	if err := l.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	var accepted atomic.Int64
	var g errgroup.Group
	for _, amount := range []string{"600.00", "500.00", "300.00", "200.00"} {
		g.Go(func() error {
			_, err := l.SubmitCommitment(ctx, "investor-"+amount, p.ID, amount)
			switch {
			case err == nil:
				accepted.Add(1)
			case fundledger.IsFundingError(err):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total, err := l.TotalCommitted(ctx, p.ID)
	if err != nil {
		t.Fatalf("TotalCommitted: %v", err)
	}
	if total.Amount > 100000 {
		t.Fatalf("total %s exceeds goal", total.FormatMajor())
	}
	if accepted.Load() == 0 {
		t.Error("no commitment accepted")
	}

	c, err := l.SubmitCommitment(ctx, "late", p.ID, "0.01")
	if total.Amount == 100000 {
		if !errors.Is(err, fundledger.ErrProjectFullyFunded) {
			t.Errorf("fully funded: got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("SubmitCommitment: %v", err)
	}

	amended, err := l.AmendCommitment(ctx, c.ID, "0.02")
	if err != nil {
		t.Fatalf("AmendCommitment: %v", err)
	}
	if amended.Amount.Amount != 2 {
		t.Errorf("amended amount: got %d, want 2", amended.Amount.Amount)
	}
}

func TestBusyTimeout(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seedProject(t, s, 100000)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithinProject(ctx, p.ID, store.TxOptions{}, func(context.Context, store.ProjectTx) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	err := s.WithinProject(ctx, p.ID, store.TxOptions{LockTimeout: 50 * time.Millisecond}, func(context.Context, store.ProjectTx) error {
		return nil
	})
	if !errors.Is(err, fundledger.ErrBusy) {
		t.Errorf("got %v, want ErrBusy", err)
	}
}
