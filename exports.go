package fundledger

import (
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Kind is re-exported from commitment package.
type Kind = commitment.Kind

// Result is re-exported from commitment package.
type Result = commitment.Result

// Re-export Money constructors
var (
	USD            = types.USD
	Zero           = types.Zero
	Sum            = types.Sum
	ParseMoney     = types.ParseMoney
	MustParseMoney = types.MustParseMoney
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
