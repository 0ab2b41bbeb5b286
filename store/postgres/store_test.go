package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{codeLockNotAvailable, fundledger.ErrBusy},
		{codeSerializationFailure, fundledger.ErrConflict},
		{codeDeadlockDetected, fundledger.ErrConflict},
		{codeUniqueViolation, fundledger.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapError(fmt.Errorf("pgdriver: exec: %w", &pgconn.PgError{Code: tt.code}))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		plain := errors.New("boom")
		if got := mapError(plain); got != plain {
			t.Errorf("got %v, want original error", got)
		}
		other := &pgconn.PgError{Code: "22P02"}
		if got := mapError(other); !errors.Is(got, other) || fundledger.IsRetryable(got) {
			t.Errorf("unexpected mapping for %s: %v", other.Code, got)
		}
	})
}

func TestIsNoRows(t *testing.T) {
	if !isNoRows(sql.ErrNoRows) {
		t.Error("sql.ErrNoRows not detected")
	}
	if !isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Error("wrapped pgx.ErrNoRows not detected")
	}
	if isNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}

func TestProjectModelRoundTrip(t *testing.T) {
	p := &project.Project{
		Entity:      types.NewEntity(),
		ID:          id.NewProjectID(),
		OwnerID:     "owner-1",
		Title:       "Solar farm",
		Currency:    "usd",
		FundingGoal: types.USD(1_000_000),
		Version:     3,
		Metadata:    map[string]string{"region": "eu"},
	}

	back, err := fromProjectModel(toProjectModel(p))
	if err != nil {
		t.Fatalf("fromProjectModel: %v", err)
	}
	if !back.ID.Equal(p.ID) || back.OwnerID != p.OwnerID || back.Version != 3 {
		t.Errorf("identity fields: got %+v", back)
	}
	if !back.FundingGoal.Equal(p.FundingGoal) {
		t.Errorf("FundingGoal: got %v, want %v", back.FundingGoal, p.FundingGoal)
	}
	if back.Metadata["region"] != "eu" {
		t.Errorf("Metadata: got %v", back.Metadata)
	}
}

func TestCommitmentModelShareBasisPoints(t *testing.T) {
	c := &commitment.Commitment{
		Entity:          types.NewEntity(),
		ID:              id.NewCommitmentID(),
		ProjectID:       id.NewProjectID(),
		InvestorID:      "investor-1",
		Amount:          types.USD(33333),
		InvestmentShare: decimal.RequireFromString("3.33"),
	}

	m := toCommitmentModel(c)
	if m.ShareBP != 333 {
		t.Errorf("ShareBP: got %d, want 333", m.ShareBP)
	}

	back, err := fromCommitmentModel(m)
	if err != nil {
		t.Fatalf("fromCommitmentModel: %v", err)
	}
	if !back.InvestmentShare.Equal(c.InvestmentShare) {
		t.Errorf("InvestmentShare: got %s, want 3.33", back.InvestmentShare)
	}
	if !back.Amount.Equal(c.Amount) {
		t.Errorf("Amount: got %v, want %v", back.Amount, c.Amount)
	}
}

func TestFromModelRejectsBadID(t *testing.T) {
	if _, err := fromCommitmentModel(&commitmentModel{ID: "proj_bad", ProjectID: "proj_bad"}); err == nil {
		t.Error("expected prefix error")
	}
}
