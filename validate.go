package fundledger

import (
	"strings"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// ParseAmount turns caller input into a positive amount in the given
// currency.
func ParseAmount(raw, currency string) (types.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Money{}, ValidationError{Field: "amount", Message: "amount is required", Err: ErrAmountRequired}
	}

	m, err := types.ParseMoney(raw, currency)
	if err != nil {
		return types.Money{}, ValidationError{Field: "amount", Message: err.Error(), Err: ErrAmountInvalid}
	}

	if !m.IsPositive() {
		return types.Money{}, ValidationError{
			Field:   "amount",
			Message: "amount must be greater than zero, got " + m.FormatMajor(),
			Err:     ErrAmountMustBePositive,
		}
	}

	return m, nil
}

// ParsedAmount is the outcome of ParseAmount run ahead of the project
// guard. The currency is applied once the project is known.
type ParsedAmount struct {
	Money types.Money
	Err   error
}

// PreparseAmount parses raw without a currency so the guarded section only
// has to attach it.
func PreparseAmount(raw string) *ParsedAmount {
	m, err := ParseAmount(raw, "")
	return &ParsedAmount{Money: m, Err: err}
}

// Proposal is a commitment as requested by a caller, before any funding
// check. Existing is set when amending. Parsed, when set, replaces parsing
// Amount.
type Proposal struct {
	InvestorID string
	Project    *project.Project
	Amount     string
	Parsed     *ParsedAmount
	Existing   *commitment.Commitment
	Change     *commitment.Amendment
}

// Validate applies the static commitment rules and returns the parsed
// amount. Checks run in a fixed order and the first failure is returned:
// immutable fields, self-investment, then the amount. The funding-goal
// bound is not checked here; it needs the guarded total.
func Validate(p Proposal) (types.Money, error) {
	if p.Existing != nil && p.Change != nil {
		if err := checkImmutable(p.Existing, p.Change); err != nil {
			return types.Money{}, err
		}
	}

	investor := strings.TrimSpace(p.InvestorID)
	if p.Existing != nil {
		investor = strings.TrimSpace(p.Existing.InvestorID)
	}
	if investor == "" {
		return types.Money{}, ValidationError{Field: "investor_id", Message: "investor is required", Err: ErrInvestorRequired}
	}
	if p.Project.IsOwner(investor) {
		return types.Money{}, ValidationError{
			Field:   "investor_id",
			Message: "investor " + investor + " owns project " + p.Project.ID.String(),
			Err:     ErrSelfInvestment,
		}
	}

	if p.Parsed != nil {
		if p.Parsed.Err != nil {
			return types.Money{}, p.Parsed.Err
		}
		return types.New(p.Parsed.Money.Amount, p.Project.Currency), nil
	}
	return ParseAmount(p.Amount, p.Project.Currency)
}

func checkImmutable(existing *commitment.Commitment, change *commitment.Amendment) error {
	if investor := strings.TrimSpace(change.InvestorID); investor != "" && investor != existing.InvestorID {
		return ValidationError{Field: "investor_id", Message: "investor cannot be changed", Err: ErrImmutableFieldChanged}
	}
	if !change.ProjectID.IsNil() && !change.ProjectID.Equal(existing.ProjectID) {
		return ValidationError{Field: "project_id", Message: "project cannot be changed", Err: ErrImmutableFieldChanged}
	}
	return nil
}

// checkHeadroom decides whether amount fits next to base, the committed
// total with any amended commitment already removed.
func checkHeadroom(goal, base, amount types.Money) error {
	if base.Amount >= goal.Amount {
		return ErrProjectFullyFunded
	}
	if base.Amount+amount.Amount > goal.Amount {
		return &FundingError{
			Err:       ErrExceedsFundingGoal,
			Requested: amount,
			Headroom:  goal.Subtract(base),
		}
	}
	return nil
}

// ParseFundingGoal parses a project's funding goal.
func ParseFundingGoal(raw, currency string) (types.Money, error) {
	m, err := types.ParseMoney(raw, currency)
	if err != nil {
		return types.Money{}, ValidationError{Field: "funding_goal", Message: err.Error(), Err: ErrInvalidFundingGoal}
	}
	if !m.IsPositive() {
		return types.Money{}, ValidationError{Field: "funding_goal", Message: "must be greater than zero", Err: ErrInvalidFundingGoal}
	}
	return m, nil
}

// ValidateProject checks a project before it is registered and reports
// every problem at once.
func ValidateProject(p *project.Project) error {
	var errs MultiError

	if strings.TrimSpace(p.OwnerID) == "" {
		errs.Add(ValidationError{Field: "owner_id", Message: "owner is required", Err: ErrOwnerRequired})
	}
	if strings.TrimSpace(p.Title) == "" {
		errs.Add(ValidationError{Field: "title", Message: "title is required", Err: ErrTitleRequired})
	}
	if !p.FundingGoal.IsPositive() {
		errs.Add(ValidationError{Field: "funding_goal", Message: "must be greater than zero", Err: ErrInvalidFundingGoal})
	}
	if p.FundingGoal.Currency == "" {
		errs.Add(ValidationError{Field: "funding_goal", Message: "currency is required", Err: ErrInvalidFundingGoal})
	}

	return errs.Err()
}
