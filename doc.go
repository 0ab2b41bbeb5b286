// Package fundledger records investor commitments against projects with a
// fixed funding goal and guarantees that the committed total of a project
// never exceeds its goal, no matter how many callers commit at once.
//
// fundledger is a library. Import it directly and pick a store:
//
//	import (
//	    "github.com/xraph/fundledger"
//	    "github.com/xraph/fundledger/store/postgres"
//	)
//
//	db, err := grove.Open(pgdb)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := fundledger.New(postgres.New(db), fundledger.WithLogger(logger))
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop(ctx)
//
// # Core Concepts
//
// A project has an owner and a funding goal:
//
//	p := &project.Project{
//	    OwnerID:     "user_founder",
//	    Title:       "Solar co-op",
//	    FundingGoal: fundledger.MustParseMoney("10000.00", "usd"),
//	}
//	err := l.CreateProject(ctx, p)
//
// Investors commit amounts as decimal strings:
//
//	c, err := l.SubmitCommitment(ctx, "user_investor", p.ID, "333.33")
//	// c.InvestmentShare == 3.33
//
// Every rejection is a typed error. KindOf classifies it and Outcome turns
// a call result into a caller-facing structure:
//
//	res := fundledger.Outcome(c, err)
//	if res.Retryable {
//	    // ErrBusy: the project guard was contended; try again
//	}
//
// # Concurrency
//
// Each commit runs its read of the committed total, the headroom check, and
// the write inside store.Store.WithinProject. The memory, postgres, and
// sqlite stores lock the project pessimistically; the mongo store uses an
// optimistic version check and the engine retries lost races with
// exponential backoff. Contention beyond the configured bounds surfaces as
// ErrBusy, the only retryable error.
//
// # Money
//
// Amounts are stored as integer minor units (cents), so funding decisions
// are exact. Shares are computed with decimal arithmetic and rounded half-up
// to two places.
package fundledger
