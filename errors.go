package fundledger

import (
	"errors"
	"fmt"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("fundledger: not found")
	ErrAlreadyExists = errors.New("fundledger: already exists")
	ErrInvalidInput  = errors.New("fundledger: invalid input")

	// Amount errors
	ErrAmountRequired       = errors.New("fundledger: amount is required")
	ErrAmountInvalid        = errors.New("fundledger: amount is invalid")
	ErrAmountMustBePositive = errors.New("fundledger: amount must be positive")

	// Commitment rule errors
	ErrSelfInvestment        = errors.New("fundledger: project owner cannot invest in own project")
	ErrImmutableFieldChanged = errors.New("fundledger: investor and project cannot be changed")
	ErrCommitmentNotFound    = errors.New("fundledger: commitment not found")

	// Funding errors
	ErrExceedsFundingGoal = errors.New("fundledger: amount exceeds remaining funding")
	ErrProjectFullyFunded = errors.New("fundledger: project is fully funded")

	// Project errors
	ErrProjectNotFound    = errors.New("fundledger: project not found")
	ErrInvalidFundingGoal = errors.New("fundledger: funding goal must be a positive amount")
	ErrOwnerRequired      = errors.New("fundledger: project owner is required")
	ErrTitleRequired      = errors.New("fundledger: project title is required")
	ErrInvestorRequired   = errors.New("fundledger: investor is required")

	// Concurrency errors
	ErrBusy     = errors.New("fundledger: project is busy, retry later")
	ErrConflict = errors.New("fundledger: concurrent update conflict")

	// Store errors
	ErrStoreClosed = errors.New("fundledger: store is closed")
)

// ValidationError represents a validation failure with details.
// Err carries the sentinel that classifies the failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("fundledger: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return e.Err }

// FundingError reports a goal rejection together with the headroom that was
// available when the guarded check ran.
type FundingError struct {
	Err       error
	Requested types.Money
	Headroom  types.Money
}

func (e *FundingError) Error() string {
	return fmt.Sprintf("%s: requested %s, remaining %s", e.Err, e.Requested, e.Headroom)
}

func (e *FundingError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "fundledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("fundledger: %d errors occurred", len(e.Errors))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Err returns nil when empty, the single error when there is one, and the
// MultiError otherwise.
func (e MultiError) Err() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrCommitmentNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried unchanged. Only guard contention qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsFundingError returns true if the error is a funding-goal rejection.
func IsFundingError(err error) bool {
	return errors.Is(err, ErrExceedsFundingGoal) ||
		errors.Is(err, ErrProjectFullyFunded)
}

// IsRejection returns true if err is a business or input rejection, as
// opposed to an infrastructure failure.
func IsRejection(err error) bool {
	k := KindOf(err)
	return k != "" && k != commitment.KindInternal
}

// KindOf classifies err. It returns "" for nil. ErrConflict is reported as
// Busy because it only escapes the engine once retries are exhausted.
func KindOf(err error) commitment.Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmountRequired):
		return commitment.KindAmountRequired
	case errors.Is(err, ErrAmountInvalid):
		return commitment.KindAmountInvalid
	case errors.Is(err, ErrAmountMustBePositive):
		return commitment.KindAmountMustBePositive
	case errors.Is(err, ErrSelfInvestment):
		return commitment.KindSelfInvestment
	case errors.Is(err, ErrProjectFullyFunded):
		return commitment.KindProjectFullyFunded
	case errors.Is(err, ErrExceedsFundingGoal):
		return commitment.KindExceedsFundingGoal
	case errors.Is(err, ErrImmutableFieldChanged):
		return commitment.KindImmutableFieldChanged
	case errors.Is(err, ErrBusy), errors.Is(err, ErrConflict):
		return commitment.KindBusy
	case IsNotFound(err):
		return commitment.KindNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidFundingGoal),
		errors.Is(err, ErrOwnerRequired),
		errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrInvestorRequired),
		errors.Is(err, ErrAlreadyExists):
		return commitment.KindInvalid
	default:
		return commitment.KindInternal
	}
}

// Outcome maps the result of a submit or amend call onto a caller-facing
// commitment.Result.
func Outcome(c *commitment.Commitment, err error) commitment.Result {
	if err == nil {
		return commitment.Result{Status: commitment.StatusAccepted, Commitment: c}
	}

	kind := KindOf(err)
	return commitment.Result{
		Status:    commitment.StatusRejected,
		Kind:      kind,
		Message:   err.Error(),
		Retryable: kind.Retryable(),
	}
}
