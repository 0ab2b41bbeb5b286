package commitment

import "github.com/xraph/fundledger/id"

// ListOpts filters commitment listings. Results are in creation order.
type ListOpts struct {
	ProjectID  id.ProjectID
	InvestorID string
	Limit      int
	Offset     int
}
