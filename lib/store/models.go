package store

import (
	"github.com/medtrace/psync/lib/ledger/types"
)

// Inventory contains the fields of a cached inventory snapshot.
type Inventory struct {
	Net     string              `json:"net" bson:"net"`
	Account string              `json:"account" bson:"account"`
	Assets  []types.AssetRecord `json:"assets" bson:"assets"`
}

// Chain contains the fields of a cached provenance chain.
type Chain struct {
	Net     string                  `json:"net" bson:"net"`
	TokenID uint64                  `json:"tokenId" bson:"tokenId"`
	Records []types.OwnershipRecord `json:"records" bson:"records"`
}
