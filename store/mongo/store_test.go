package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/types"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"write conflict", mongo.CommandError{Code: codeWriteConflict, Name: "WriteConflict"}, fundledger.ErrConflict},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, fundledger.ErrConflict},
		{"duplicate key", mongo.CommandError{Code: 11000}, fundledger.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(fmt.Errorf("mongodriver: update one: %w", tt.err))
			if !errors.Is(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if mapError(nil) != nil {
		t.Error("nil should stay nil")
	}
	plain := errors.New("boom")
	if got := mapError(plain); got != plain {
		t.Errorf("plain error rewritten: %v", got)
	}
}

func TestCommitmentModelRoundTrip(t *testing.T) {
	c := &commitment.Commitment{
		Entity:          types.NewEntity(),
		ID:              id.NewCommitmentID(),
		ProjectID:       id.NewProjectID(),
		InvestorID:      "investor",
		Amount:          types.USD(12345),
		InvestmentShare: decimal.RequireFromString("12.35"),
		Metadata:        map[string]string{"channel": "web"},
	}

	m := toCommitmentModel(c)
	if m.ShareBP != 1235 {
		t.Errorf("ShareBP: got %d, want 1235", m.ShareBP)
	}

	back, err := fromCommitmentModel(m)
	if err != nil {
		t.Fatalf("fromCommitmentModel: %v", err)
	}
	if !back.ID.Equal(c.ID) || !back.ProjectID.Equal(c.ProjectID) {
		t.Errorf("ids: got %s/%s", back.ID, back.ProjectID)
	}
	if !back.InvestmentShare.Equal(c.InvestmentShare) || back.Metadata["channel"] != "web" {
		t.Errorf("got %+v", back)
	}
}

func TestMigrationIndexesCoverCollections(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colProjects, colCommitments} {
		if len(idx[col]) == 0 {
			t.Errorf("no indexes for %s", col)
		}
	}
}
