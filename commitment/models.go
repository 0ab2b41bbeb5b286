// Package commitment defines an investor's pledge toward a project's funding
// goal, the amendments that may be applied to it, and the structured outcome
// of a submit or amend call.
package commitment

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/types"
)

// Commitment is a single investor's pledge. InvestorID and ProjectID are
// fixed at creation; only Amount (and the derived InvestmentShare) change.
type Commitment struct {
	types.Entity
	ID              id.CommitmentID   `json:"id"`
	ProjectID       id.ProjectID      `json:"project_id"`
	InvestorID      string            `json:"investor_id"`
	Amount          types.Money       `json:"amount"`
	InvestmentShare decimal.Decimal   `json:"investment_share"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Amendment is a requested change to an existing commitment. InvestorID and
// ProjectID, when set, must match the stored values.
type Amendment struct {
	Amount     string       `json:"amount"`
	InvestorID string       `json:"investor_id,omitempty"`
	ProjectID  id.ProjectID `json:"project_id,omitzero"`
}

// Status is the outcome of a submit or amend call.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Kind classifies a rejection for programmatic handling.
type Kind string

const (
	KindAmountRequired        Kind = "AmountRequired"
	KindAmountInvalid         Kind = "AmountInvalid"
	KindAmountMustBePositive  Kind = "AmountMustBePositive"
	KindSelfInvestment        Kind = "SelfInvestment"
	KindExceedsFundingGoal    Kind = "ExceedsFundingGoal"
	KindProjectFullyFunded    Kind = "ProjectFullyFunded"
	KindImmutableFieldChanged Kind = "ImmutableFieldChanged"
	KindBusy                  Kind = "Busy"
	KindNotFound              Kind = "NotFound"
	KindInvalid               Kind = "Invalid"
	KindInternal              Kind = "Internal"
)

// Retryable reports whether a rejection of this kind may succeed unchanged
// on a later attempt.
func (k Kind) Retryable() bool { return k == KindBusy }

// Result is the caller-facing outcome of a submit or amend call.
type Result struct {
	Status     Status      `json:"status"`
	Kind       Kind        `json:"kind,omitempty"`
	Message    string      `json:"message,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	Commitment *Commitment `json:"commitment,omitempty"`
}

// Accepted reports whether the call succeeded.
func (r Result) Accepted() bool { return r.Status == StatusAccepted }
