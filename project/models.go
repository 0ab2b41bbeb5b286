// Package project defines the funded project a commitment is made against.
package project

import (
	"strings"

	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/types"
)

// Project is a fundraising target. FundingGoal is immutable once created;
// the committed total is derived from commitments and never stored here.
type Project struct {
	types.Entity
	ID          id.ProjectID      `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	Currency    string            `json:"currency"`
	FundingGoal types.Money       `json:"funding_goal"`
	Version     int64             `json:"version"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsOwner reports whether identity owns the project. Surrounding
// whitespace on either side is ignored.
func (p *Project) IsOwner(identity string) bool {
	return strings.TrimSpace(p.OwnerID) == strings.TrimSpace(identity)
}

// Funding is a point-in-time summary of a project's funding state.
type Funding struct {
	ProjectID   id.ProjectID `json:"project_id"`
	Goal        types.Money  `json:"goal"`
	Total       types.Money  `json:"total_committed"`
	Headroom    types.Money  `json:"headroom"`
	FullyFunded bool         `json:"fully_funded"`
	Commitments int          `json:"commitments"`
	ShareSum    string       `json:"share_sum"`
}
