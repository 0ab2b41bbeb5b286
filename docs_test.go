package fundledger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples
// run as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		l := fundledger.New(store,
			fundledger.WithLogger(slog.New(slog.DiscardHandler)),
			fundledger.WithLockTimeout(2*time.Second),
			fundledger.WithMaxRetries(3),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop(ctx)

		p := &project.Project{
			OwnerID:     "user_founder",
			Title:       "Solar co-op",
			FundingGoal: fundledger.MustParseMoney("10000.00", "usd"),
		}
		if err := l.CreateProject(ctx, p); err != nil {
			t.Fatal(err)
		}

		c, err := l.SubmitCommitment(ctx, "user_investor", p.ID, "333.33")
		if err != nil {
			t.Fatal(err)
		}
		if got := c.InvestmentShare.StringFixed(2); got != "3.33" {
			t.Errorf("share: got %s, want 3.33", got)
		}

		res := fundledger.Outcome(c, err)
		if !res.Accepted() {
			t.Errorf("Outcome: got %+v", res)
		}
	})

	t.Run("RejectionExample", func(t *testing.T) {
		l := fundledger.New(memory.New(), fundledger.WithLogger(slog.New(slog.DiscardHandler)))
		ctx := context.Background()

		p := &project.Project{
			OwnerID:     "user_founder",
			Title:       "Bakery",
			FundingGoal: fundledger.MustParseMoney("1000.00", "usd"),
		}
		if err := l.CreateProject(ctx, p); err != nil {
			t.Fatal(err)
		}

		c, err := l.SubmitCommitment(ctx, "user_founder", p.ID, "10.00")
		res := fundledger.Outcome(c, err)
		if res.Accepted() || res.Kind != fundledger.Kind("SelfInvestment") || res.Retryable {
			t.Errorf("Outcome: got %+v", res)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		m, err := fundledger.ParseMoney("1234.50", "usd")
		if err != nil {
			t.Fatal(err)
		}
		if m.String() != "$1234.50" {
			t.Errorf("String: got %s", m)
		}

		sum := fundledger.Sum("usd", fundledger.USD(100), fundledger.USD(250))
		if sum.FormatMajor() != "3.50" {
			t.Errorf("Sum: got %s", sum.FormatMajor())
		}
	})
}
