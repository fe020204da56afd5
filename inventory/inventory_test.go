package inventory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger/types"
)

// fakeRegistry serves a configurable token range. gate, when set, blocks NextTokenID until released so tests can
// hold a scan in flight.
type fakeRegistry struct {
	next       uint64
	nextErr    error
	owners     map[uint64]string // token id -> owner, missing ids are unminted
	ownerErr   map[uint64]error
	detailsErr map[uint64]error
	nextCalls  int32
	gate       chan struct{}
}

func (f *fakeRegistry) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	if err, ok := f.ownerErr[tokenID]; ok {
		return "", err
	}

	owner, ok := f.owners[tokenID]
	if !ok {
		return "", types.ErrTokenMissing
	}

	return owner, nil
}

func (f *fakeRegistry) AssetDetails(ctx context.Context, tokenID uint64) (types.AssetRecord, error) {
	if err, ok := f.detailsErr[tokenID]; ok {
		return types.AssetRecord{}, err
	}

	return types.AssetRecord{TokenID: tokenID, Owner: f.owners[tokenID], Name: "Amoxicillin 500mg"}, nil
}

func (f *fakeRegistry) OwnershipHistory(ctx context.Context, tokenID uint64) ([]types.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeRegistry) NextTokenID(ctx context.Context) (uint64, error) {
	atomic.AddInt32(&f.nextCalls, 1)

	if f.gate != nil {
		<-f.gate
	}

	if f.nextErr != nil {
		return 0, f.nextErr
	}

	return f.next, nil
}

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

func TestScan(t *testing.T) {
	owner := "0xaaaa"
	other := "0xbbbb"

	// tokens 1..8 minted except 8 which was burned; the account owns 3 and 7
	reg := &fakeRegistry{
		next: 9,
		owners: map[uint64]string{
			1: other, 2: other, 3: "0xAAAA", 4: other, 5: other, 6: other, 7: owner,
		},
	}

	recs, err := New(50).Scan(context.Background(), owner, contract.NewSet("goerli", reg))
	if err != nil {
		t.Fatalf("Error scanning:%e", err)
	}

	// ascending, no duplicates, case-insensitive owner match
	if len(recs) != 2 || recs[0].TokenID != 3 || recs[1].TokenID != 7 {
		t.Errorf("wrong inventory %+v", recs)
	}
}

func TestScanWindow(t *testing.T) {
	owner := "0xaaaa"

	// the account owns token 1 but the trailing window starts at 96
	reg := &fakeRegistry{
		next:   101,
		owners: map[uint64]string{1: owner, 99: owner},
	}

	recs, err := New(5).Scan(context.Background(), owner, contract.NewSet("goerli", reg))
	if err != nil {
		t.Fatalf("Error scanning:%e", err)
	}

	if len(recs) != 1 || recs[0].TokenID != 99 {
		t.Errorf("window not honored, got %+v", recs)
	}
}

func TestScanNoCounter(t *testing.T) {
	// a registry without a token counter has no assets issued yet
	reg := &fakeRegistry{nextErr: types.ErrNoTokenCounter}

	recs, err := New(50).Scan(context.Background(), "0xaaaa", contract.NewSet("goerli", reg))
	if err != nil {
		t.Fatalf("Error scanning:%e", err)
	}

	if len(recs) != 0 {
		t.Errorf("expected empty inventory, got %+v", recs)
	}
}

func TestScanOutage(t *testing.T) {
	reg := &fakeRegistry{nextErr: types.ErrRegistryUnavailable}

	if _, err := New(50).Scan(context.Background(), "0xaaaa", contract.NewSet("goerli", reg)); !errors.Is(err, types.ErrRegistryUnavailable) {
		t.Errorf("expected ErrRegistryUnavailable, got %e", err)
	}
}

func TestScanSkipsTokenFailures(t *testing.T) {
	owner := "0xaaaa"

	// per-token failures never abort the scan
	reg := &fakeRegistry{
		next:       5,
		owners:     map[uint64]string{1: owner, 2: owner, 3: owner},
		ownerErr:   map[uint64]error{2: types.ErrCallTimeout},
		detailsErr: map[uint64]error{3: types.ErrRegistryUnavailable},
	}

	recs, err := New(50).Scan(context.Background(), owner, contract.NewSet("goerli", reg))
	if err != nil {
		t.Fatalf("Error scanning:%e", err)
	}

	if len(recs) != 1 || recs[0].TokenID != 1 {
		t.Errorf("wrong inventory %+v", recs)
	}
}

func TestScanCoalesce(t *testing.T) {
	owner := "0xaaaa"
	reg := &fakeRegistry{
		next:   2,
		owners: map[uint64]string{1: owner},
		gate:   make(chan struct{}),
	}

	s := New(50)
	set := contract.NewSet("goerli", reg)

	var wg sync.WaitGroup

	scan := func() {
		defer wg.Done()

		if recs, err := s.Scan(context.Background(), owner, set); err != nil || len(recs) != 1 {
			t.Errorf("coalesced scan failed, recs:%+v err:%e", recs, err)
		}
	}

	wg.Add(1)

	go scan()

	// wait until the first scan holds the singleflight key, then pile a duplicate on top
	for atomic.LoadInt32(&reg.nextCalls) == 0 {
		time.Sleep(time.Millisecond)
	}

	wg.Add(1)

	go scan()

	time.Sleep(20 * time.Millisecond)
	close(reg.gate)
	wg.Wait()

	if n := atomic.LoadInt32(&reg.nextCalls); n != 1 {
		t.Errorf("expected a single chain walk, got %d", n)
	}
}
