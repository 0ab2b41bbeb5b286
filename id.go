package fundledger

import "github.com/xraph/fundledger/id"

// ID is the primary identifier type for all fundledger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
