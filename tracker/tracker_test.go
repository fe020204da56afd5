package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/medtrace/psync/inventory"
	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger"
	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/provider"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/provenance"
	"github.com/medtrace/psync/session"
)

// fakeDB is an in-memory store.DB.
type fakeDB struct {
	inv    map[string][]types.AssetRecord
	chains map[string][]types.OwnershipRecord
}

func newFakeDB() *fakeDB {
	return &fakeDB{inv: map[string][]types.AssetRecord{}, chains: map[string][]types.OwnershipRecord{}}
}

func (d *fakeDB) SaveInventory(net, account string, recs []types.AssetRecord) error {
	d.inv[net+"|"+account] = recs

	return nil
}

func (d *fakeDB) LoadInventory(net, account string) ([]types.AssetRecord, error) {
	recs, ok := d.inv[net+"|"+account]
	if !ok {
		return nil, store.ErrDataNotFound
	}

	return recs, nil
}

func (d *fakeDB) DeleteInventory(net, account string) error {
	delete(d.inv, net+"|"+account)

	return nil
}

func (d *fakeDB) SaveChain(net string, tokenID uint64, recs []types.OwnershipRecord) error {
	d.chains[net] = recs

	return nil
}

func (d *fakeDB) LoadChain(net string, tokenID uint64) ([]types.OwnershipRecord, error) {
	recs, ok := d.chains[net]
	if !ok {
		return nil, store.ErrDataNotFound
	}

	return recs, nil
}

// outageRegistry models an unreachable registry contract.
type outageRegistry struct{ fakeRegistry }

func (outageRegistry) NextTokenID(ctx context.Context) (uint64, error) {
	return 0, types.ErrRegistryUnavailable
}

type outageChain struct{}

func (outageChain) Close() {}

func (outageChain) Balance(account string) (*big.Int, error) {
	return nil, types.ErrRegistryUnavailable
}

func (outageChain) Bind(signer provider.Signer) (contract.Registry, error) {
	return outageRegistry{}, nil
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()

	chains := map[string]ledger.Chain{"goerli": fakeChain{}}
	rt := &fakeRuntime{accounts: []string{"0xAbCd"}, events: make(chan []string, 4)}
	gw := session.NewGateway(rt, chains, session.New())

	if _, err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("Error connecting:%e", err)
	}

	return New("", nil, nil, chains, gw, inventory.New(50), provenance.New(), nil, "https://ipfs.io/ipfs/")
}

func TestRefresh(t *testing.T) {
	tr := newTestTracker(t)

	recs, err := tr.refresh(context.Background(), "goerli", "0xabcd")
	if err != nil {
		t.Fatalf("Error refreshing:%e", err)
	}

	if len(recs) != 2 || recs[0].TokenID != 3 || recs[1].TokenID != 7 {
		t.Errorf("wrong inventory %+v", recs)
	}
}

func TestRefreshStaleDiscard(t *testing.T) {
	tr := newTestTracker(t)

	// a scan for an account that is no longer the session account is discarded at the write boundary
	if _, err := tr.refresh(context.Background(), "goerli", "0xdef0"); !errors.Is(err, types.ErrStaleResult) {
		t.Errorf("expected ErrStaleResult, got %e", err)
	}
}

func TestAssetsCacheFallback(t *testing.T) {
	chains := map[string]ledger.Chain{"goerli": outageChain{}}
	rt := &fakeRuntime{accounts: []string{"0xAbCd"}, events: make(chan []string, 4)}
	gw := session.NewGateway(rt, chains, session.New())

	if _, err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("Error connecting:%e", err)
	}

	db := newFakeDB()
	db.inv["goerli|0xabcd"] = []types.AssetRecord{{TokenID: 3, Name: "Amoxicillin 500mg", Owner: "0xabcd"}}

	tr := New("", db, nil, chains, gw, inventory.New(50), provenance.New(), nil, "https://ipfs.io/ipfs/")

	// scan fails at the registry, the cached snapshot is served instead
	rw := httptest.NewRecorder()
	tr.assetsHandler(rw, httptest.NewRequest(http.MethodGet, "/assets", nil))

	if rw.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rw.Code, rw.Body.String())
	}

	var res Response
	if err := json.NewDecoder(rw.Body).Decode(&res); err != nil {
		t.Fatalf("Error decoding response:%e", err)
	}

	if !strings.Contains(res.Body, `"cached":true`) || !strings.Contains(res.Body, `"tokenId":3`) {
		t.Errorf("cache fallback not served: %s", res.Body)
	}

	// no cached snapshot: the outage surfaces
	db.DeleteInventory("goerli", "0xabcd")

	rw = httptest.NewRecorder()
	tr.assetsHandler(rw, httptest.NewRequest(http.MethodGet, "/assets", nil))

	if rw.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d body %s", rw.Code, rw.Body.String())
	}
}

func TestNetOf(t *testing.T) {
	tr := newTestTracker(t)

	cases := []struct {
		form map[string][]string
		net  string
		err  error
	}{
		{map[string][]string{}, "goerli", nil}, // a single configured network is implied
		{map[string][]string{"net": {"goerli"}}, "goerli", nil},
		{map[string][]string{"net": {"ropsten"}}, "", ErrNoNet},
		{map[string][]string{"net": {"goerli", "goerli"}}, "", ErrMissingNet},
	}

	for i, c := range cases {
		req := &http.Request{Form: url.Values(c.form)}

		net, err := tr.netOf(req)
		if net != c.net || !errors.Is(err, c.err) {
			t.Errorf("case %d: got (%s, %e) expected (%s, %e)", i, net, err, c.net, c.err)
		}
	}
}
