package provenance

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger/types"
)

type fakeRegistry struct {
	hist    []types.HistoryEntry
	histErr error
	rec     types.AssetRecord
	recErr  error
}

func (f *fakeRegistry) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	return f.rec.Owner, nil
}

func (f *fakeRegistry) AssetDetails(ctx context.Context, tokenID uint64) (types.AssetRecord, error) {
	return f.rec, f.recErr
}

func (f *fakeRegistry) OwnershipHistory(ctx context.Context, tokenID uint64) ([]types.HistoryEntry, error) {
	return f.hist, f.histErr
}

func (f *fakeRegistry) NextTokenID(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeRegistry) Transfer(ctx context.Context, to string, tokenID uint64) (string, error) {
	return "", nil
}

func (f *fakeRegistry) List(ctx context.Context, tokenID uint64, price *big.Int) (string, error) {
	return "", nil
}

func (f *fakeRegistry) Listing(ctx context.Context, tokenID uint64) (types.Listing, error) {
	return types.Listing{}, nil
}

func (f *fakeRegistry) Role(ctx context.Context, account string) (types.Role, error) {
	return types.RoleNone, nil
}

func TestReconstructFullHistory(t *testing.T) {
	reg := &fakeRegistry{
		hist: []types.HistoryEntry{
			{Owner: "0xmfg", TS: 1000},
			{Owner: "0xdist", TS: 2000},
			{Owner: "0xpharm", TS: 3000},
		},
	}

	recs := New().Reconstruct(context.Background(), 7, contract.NewSet("goerli", reg))

	if len(recs) != 3 {
		t.Fatalf("wrong chain length %d", len(recs))
	}

	exp := []types.OwnershipRecord{
		{Owner: "0xmfg", TS: 1000, Label: types.LabelMinting},
		{Owner: "0xdist", TS: 2000, Label: "Transfer #1"},
		{Owner: "0xpharm", TS: 3000, Label: "Transfer #2"},
	}
	for i, rec := range recs {
		if rec != exp[i] {
			t.Errorf("record %d: got %+v expected %+v", i, rec, exp[i])
		}
	}
}

func TestReconstructFallback(t *testing.T) {
	now := time.Unix(5000, 0)
	r := NewWithClock(func() time.Time { return now })

	// asset transferred away from its manufacturer: minting entry plus a synthesized current-owner entry stamped
	// with the reconstruction time
	reg := &fakeRegistry{
		histErr: types.ErrHistoryUnavailable,
		rec:     types.AssetRecord{TokenID: 7, Manufacturer: "0xmfg", Owner: "0xpharm", MfgTime: 1000},
	}

	recs := r.Reconstruct(context.Background(), 7, contract.NewSet("goerli", reg))
	if len(recs) != 2 {
		t.Fatalf("wrong chain length %d", len(recs))
	}

	if recs[0] != (types.OwnershipRecord{Owner: "0xmfg", TS: 1000, Label: types.LabelMinting}) {
		t.Errorf("wrong minting record %+v", recs[0])
	}

	if recs[1] != (types.OwnershipRecord{Owner: "0xpharm", TS: 5000, Label: types.LabelOwner}) {
		t.Errorf("wrong owner record %+v", recs[1])
	}

	// asset still with its manufacturer: single minting entry, no duplicate
	reg.rec.Owner = "0xMFG"

	recs = r.Reconstruct(context.Background(), 7, contract.NewSet("goerli", reg))
	if len(recs) != 1 || recs[0].Label != types.LabelMinting {
		t.Errorf("wrong chain %+v", recs)
	}
}

func TestReconstructEmptyHistoryFallsBack(t *testing.T) {
	// an empty history answer is treated like an unavailable one
	reg := &fakeRegistry{
		rec: types.AssetRecord{TokenID: 7, Manufacturer: "0xmfg", Owner: "0xmfg", MfgTime: 1000},
	}

	recs := New().Reconstruct(context.Background(), 7, contract.NewSet("goerli", reg))
	if len(recs) != 1 || recs[0].Owner != "0xmfg" {
		t.Errorf("wrong chain %+v", recs)
	}
}

func TestReconstructNothingAvailable(t *testing.T) {
	reg := &fakeRegistry{
		histErr: types.ErrHistoryUnavailable,
		recErr:  types.ErrRegistryUnavailable,
	}

	recs := New().Reconstruct(context.Background(), 7, contract.NewSet("goerli", reg))
	if len(recs) != 0 {
		t.Errorf("expected empty chain, got %+v", recs)
	}
}
