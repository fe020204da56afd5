// Package contract defines the typed callable surface of the deployed contract suite and the revocable binding set
// the session hands out to readers. On-chain method names are a compatibility surface of the deployment, not a design
// choice of this core.
package contract

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/medtrace/psync/lib/ledger/types"
)

// Contract identifiers of the deployed suite.
type ID int

const (
	AssetRegistry ID = iota
	Marketplace
	IdentityRegistry
)

// String returns the contract name.
func (id ID) String() string {
	switch id {
	case AssetRegistry:
		return "assetRegistry"
	case Marketplace:
		return "marketplace"
	case IdentityRegistry:
		return "identityRegistry"
	}

	return "unknown"
}

// Registry is the typed read/write surface of one network's contract suite, bound to one signer.
type Registry interface {
	// asset registry contract
	OwnerOf(ctx context.Context, tokenID uint64) (string, error)
	AssetDetails(ctx context.Context, tokenID uint64) (types.AssetRecord, error)
	OwnershipHistory(ctx context.Context, tokenID uint64) ([]types.HistoryEntry, error)
	NextTokenID(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, to string, tokenID uint64) (string, error)
	// marketplace contract
	List(ctx context.Context, tokenID uint64, price *big.Int) (string, error)
	Listing(ctx context.Context, tokenID uint64) (types.Listing, error)
	// identity registry contract
	Role(ctx context.Context, account string) (types.Role, error)
}

// Set wraps a bound Registry with a revocation flag. The session owns exactly one Set per network; a signer change
// revokes the whole set and a fresh one is built, never an in-place rebind. Every call through a revoked set fails
// fast with types.ErrBindingRevoked so no dependent can silently use stale bindings.
type Set struct {
	net     string
	r       Registry
	revoked int32
}

// NewSet wraps the bound registry of network net.
func NewSet(net string, r Registry) *Set {
	return &Set{net: net, r: r}
}

// Net returns the network the set is bound on.
func (s *Set) Net() string {
	return s.net
}

// Revoke invalidates the set. Idempotent.
func (s *Set) Revoke() {
	atomic.StoreInt32(&s.revoked, 1)
}

// Revoked reports whether the set has been invalidated.
func (s *Set) Revoked() bool {
	return atomic.LoadInt32(&s.revoked) == 1
}

func (s *Set) guard() error {
	if s.Revoked() {
		return types.ErrBindingRevoked
	}

	return nil
}

// OwnerOf returns the current owner of the token.
func (s *Set) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}

	return s.r.OwnerOf(ctx, tokenID)
}

// AssetDetails returns the descriptive record of the token.
func (s *Set) AssetDetails(ctx context.Context, tokenID uint64) (types.AssetRecord, error) {
	if err := s.guard(); err != nil {
		return types.AssetRecord{}, err
	}

	return s.r.AssetDetails(ctx, tokenID)
}

// OwnershipHistory returns the full on-chain ownership history of the token.
func (s *Set) OwnershipHistory(ctx context.Context, tokenID uint64) ([]types.HistoryEntry, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	return s.r.OwnershipHistory(ctx, tokenID)
}

// NextTokenID returns the upper bound of issued token identifiers.
func (s *Set) NextTokenID(ctx context.Context) (uint64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	return s.r.NextTokenID(ctx)
}

// Transfer hands the token over to account to, returning the transaction hash.
func (s *Set) Transfer(ctx context.Context, to string, tokenID uint64) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}

	return s.r.Transfer(ctx, to, tokenID)
}

// List puts the token up for sale at price, returning the transaction hash.
func (s *Set) List(ctx context.Context, tokenID uint64, price *big.Int) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}

	return s.r.List(ctx, tokenID, price)
}

// Listing returns the marketplace listing of the token.
func (s *Set) Listing(ctx context.Context, tokenID uint64) (types.Listing, error) {
	if err := s.guard(); err != nil {
		return types.Listing{}, err
	}

	return s.r.Listing(ctx, tokenID)
}

// Role returns the identity-registry role of the account.
func (s *Set) Role(ctx context.Context, account string) (types.Role, error) {
	if err := s.guard(); err != nil {
		return types.RoleNone, err
	}

	return s.r.Role(ctx, account)
}
