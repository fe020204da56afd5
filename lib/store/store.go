// Package store defines the interface for the session-scoped cache database. The cache only ever holds data that can
// be re-fetched from chain; it exists so a registry outage degrades to a stale snapshot instead of an empty screen.
package store

import (
	"errors"

	"github.com/medtrace/psync/lib/ledger/types"
)

// DB defines required methods for the inventory and provenance caches.
type DB interface {
	// inventory snapshots, keyed (net, account); session-scoped
	SaveInventory(net, account string, recs []types.AssetRecord) error
	LoadInventory(net, account string) ([]types.AssetRecord, error)
	DeleteInventory(net, account string) error
	// provenance chains, keyed (net, token)
	SaveChain(net string, tokenID uint64, recs []types.OwnershipRecord) error
	LoadChain(net string, tokenID uint64) ([]types.OwnershipRecord, error)
}

// Errors returned
var (
	ErrDataNotFound = errors.New("Data was not found in store")
)
