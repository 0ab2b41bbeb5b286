package audithook

// Action constants for audit events.
const (
	// Project actions
	ActionProjectCreated     = "project.created"
	ActionProjectFullyFunded = "project.fully_funded"

	// Commitment actions
	ActionCommitmentAccepted = "commitment.accepted"
	ActionCommitmentAmended  = "commitment.amended"
	ActionCommitmentRejected = "commitment.rejected"

	// Guard actions
	ActionGuardContention = "guard.contention"
)

// Resource constants for audit events.
const (
	ResourceProject    = "project"
	ResourceCommitment = "commitment"
)

// Category constants for audit events.
const (
	CategoryFunding     = "funding"
	CategoryInvestment  = "investment"
	CategoryConcurrency = "concurrency"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
