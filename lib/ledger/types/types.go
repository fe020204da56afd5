// Package types common ledger types for the synchronization core.
package types

import (
	"errors"
)

// AssetRecord holds the on-chain descriptive record of one tokenized medicine
// batch. Records are immutable once fetched for a given chain state; stale
// records are re-fetched, never patched.
type AssetRecord struct {
	TokenID      uint64 `json:"tokenId"`
	Name         string `json:"name"`
	Batch        string `json:"batch"`
	MfgTime      int64  `json:"mfgTime"` // unix seconds
	ExpTime      int64  `json:"expTime"` // unix seconds
	Composition  string `json:"composition"`
	Storage      string `json:"storage"`
	DocHash      string `json:"docHash,omitempty"` // content hash of the off-chain document
	Manufacturer string `json:"manufacturer"`
	Owner        string `json:"owner"`
}

// HistoryEntry is one raw entry of the registry's full-history query.
type HistoryEntry struct {
	Owner string `json:"owner"`
	TS    int64  `json:"ts"`
}

// Provenance labels given to ownership records.
const (
	LabelMinting = "Original Minting"
	LabelOwner   = "Current Owner"
)

// OwnershipRecord is one link of a provenance chain. Index 0 of a chain is
// always the minting event. When the chain was synthesized via the fallback
// path, the last record's timestamp is the reconstruction time, an explicit
// approximation of the unknown transfer time.
type OwnershipRecord struct {
	Owner string `json:"owner"`
	TS    int64  `json:"ts"`
	Label string `json:"label"`
}

// Listing holds a marketplace listing for a token.
type Listing struct {
	Seller string `json:"seller"`
	Price  string `json:"price"` // decimal string, native currency wei
	Active bool   `json:"active"`
}

// Role values of the identity registry contract.
type Role uint8

const (
	RoleNone Role = iota
	RoleManufacturer
	RoleDistributor
	RolePharmacy
	RoleRegulator
)

// String returns the display name of the role.
func (r Role) String() string {
	switch r {
	case RoleManufacturer:
		return "manufacturer"
	case RoleDistributor:
		return "distributor"
	case RolePharmacy:
		return "pharmacy"
	case RoleRegulator:
		return "regulator"
	}

	return "none"
}

// Event is published to the message broker on session transitions and
// completed inventory scans so front-ends can react in real time.
type Event struct {
	Net     string `json:"net"`
	Kind    string `json:"kind"` // "session" or "inventory"
	Account string `json:"account,omitempty"`
	Status  string `json:"status,omitempty"` // session status for "session" events
	Assets  int    `json:"assets,omitempty"` // result size for "inventory" events
}

// RefreshReq asks the service to rescan the inventory of an account.
type RefreshReq struct {
	Net     string `json:"net"`
	Account string `json:"account"`
}

// Error codes.
var (
	ErrTokenMissing        = errors.New("token does not exist or was burned")
	ErrHistoryUnavailable  = errors.New("ownership history not available for token")
	ErrNoTokenCounter      = errors.New("registry has no token counter, no assets issued yet")
	ErrRegistryUnavailable = errors.New("registry contract not reachable")
	ErrCallTimeout         = errors.New("ledger call timed out")
	ErrBindingRevoked      = errors.New("contract binding has been revoked")
	ErrStaleResult         = errors.New("result discarded, session account changed during the operation")
)
