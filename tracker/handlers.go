package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/medtrace/psync/lib/cas"
	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/provider"
	"github.com/medtrace/psync/lib/status"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/lib/util"
	"github.com/medtrace/psync/session"
)

// AccountReq selects an HD wallet account. Wallet, Change and Id are the HD derivation path of the account the
// session will act as.
type AccountReq struct {
	Wallet uint32 `json:"wallet"`
	Change uint8  `json:"change"`
	ID     uint32 `json:"id"`
}

// TransferReq is the body of an asset transfer request.
type TransferReq struct {
	To string `json:"to"`
}

// ListingReq is the body of a marketplace listing request.
type ListingReq struct {
	Price string `json:"price"` // decimal string, native currency wei
}

// Errors returned to client requests.
var (
	ErrBadRequest = errors.New("bad request")
	ErrMissingNet = errors.New("undefined network - missing query: ?net=<network>")
	ErrNoAddr     = errors.New("undefined address - missing in uri")
	ErrNoID       = errors.New("a numeric token id is required")
	ErrNoNet      = errors.New("network not available")
	ErrNoSwitch   = errors.New("wallet runtime does not support account switching")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// assetView is an asset record annotated with derived status and the document URL, the shape the UI renders.
type assetView struct {
	types.AssetRecord
	Status status.Derived `json:"status"`
	DocURL string         `json:"docUrl,omitempty"`
}

// inventoryReply is the body of an inventory scan response. Cached marks a stale snapshot served because the registry
// was unreachable.
type inventoryReply struct {
	Net     string      `json:"net"`
	Account string      `json:"account"`
	Cached  bool        `json:"cached,omitempty"`
	Assets  []assetView `json:"assets"`
}

// homeHandler just replies a welcome message to the client.
func (t *Tracker) homeHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your pharma provenance tracker!"
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(res)
}

// networksHandler replies the networks available to the tracker.
func (t *Tracker) networksHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	pl := make([]string, 0, len(t.bc))

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(pl)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s res:%+v err:%e\n", r.RemoteAddr, r.RequestURI, pl, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	for net := range t.bc {
		pl = append(pl, net)
	}
}

// connectHandler establishes the wallet session. An optional body selects the HD account to expose before the
// connection is requested.
func (t *Tracker) connectHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var account string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			switch {
			case errIs(err, provider.ErrRejected):
				rw.WriteHeader(http.StatusUnauthorized)
			case errIs(err, provider.ErrNoWallet, provider.ErrProvider):
				rw.WriteHeader(http.StatusBadGateway)
			default:
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Body = account

			rw.WriteHeader(http.StatusOK)
		}
		// log request and account
		log.Printf("httpreq from %v %s account:%s err:%e\n", r.RemoteAddr, r.RequestURI, account, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// optional account selection
	if r.Body != nil && r.ContentLength != 0 {
		var sel AccountReq
		if err = json.NewDecoder(r.Body).Decode(&sel); err != nil {
			log.Printf("Error decoding account request %+v\n", r.Body)

			return
		}

		if t.sel == nil {
			err = ErrNoSwitch

			return
		}

		if _, err = t.sel.Select(sel.Wallet, sel.Change, sel.ID); err != nil {
			return
		}
	}

	account, err = t.gw.Connect(r.Context())
}

// sessionHandler replies the current session snapshot together with the account's native balance on every network.
func (t *Tracker) sessionHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	snap := t.gw.Session().Snapshot()

	reply := struct {
		Status   string            `json:"status"`
		Account  string            `json:"account,omitempty"`
		LastErr  string            `json:"lastError,omitempty"`
		Balances map[string]string `json:"balances,omitempty"`
	}{Status: snap.Status.String(), Account: snap.Account, LastErr: snap.LastError}

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(reply)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s status:%s err:%e\n", r.RemoteAddr, r.RequestURI, reply.Status, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if snap.Account == "" {
		return
	}

	reply.Balances = make(map[string]string, len(t.bc))

	for net, client := range t.bc {
		bal, errBal := client.Balance(snap.Account)
		if errBal != nil {
			log.Printf("[%s] error getting balance for %s:%e\n", net, snap.Account, errBal)

			continue
		}

		reply.Balances[net] = bal.String()
	}
}

// disconnectHandler resets the wallet session, invalidating all contract bindings.
func (t *Tracker) disconnectHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response

	t.gw.Disconnect()

	res.Body = "disconnected"
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(&res)
}

// switchAccountHandler switches the wallet runtime to another HD account. The session itself follows through the
// gateway's account-change listener, the same path a wallet-side switch takes.
func (t *Tracker) switchAccountHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var addr string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = addr

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request and address
		log.Printf("httpreq from %v %s addr:%s err:%e\n", r.RemoteAddr, r.RequestURI, addr, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if t.sel == nil {
		err = ErrNoSwitch

		return
	}

	var sel AccountReq
	if err = json.NewDecoder(r.Body).Decode(&sel); err != nil {
		log.Printf("Error decoding account request %+v\n", r.Body)

		return
	}

	addr, err = t.sel.Select(sel.Wallet, sel.Change, sel.ID)
}

// assetsHandler scans the connected account's inventory on the requested network and replies the asset records
// annotated with derived status. When the registry is unreachable, a cached snapshot is served instead if one exists.
func (t *Tracker) assetsHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var reply inventoryReply

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			switch {
			case errIs(err, types.ErrStaleResult):
				rw.WriteHeader(http.StatusConflict)
			case errIs(err, types.ErrRegistryUnavailable, types.ErrCallTimeout):
				rw.WriteHeader(http.StatusServiceUnavailable)
			default:
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(reply)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s assets:%d cached:%v err:%e\n", r.RemoteAddr, r.RequestURI,
			len(reply.Assets), reply.Cached, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	account := t.gw.Session().Account()
	if account == "" {
		err = session.ErrNotConnected

		return
	}

	reply.Net, reply.Account = net, account

	recs, errScan := t.refresh(r.Context(), net, account)
	if errScan != nil {
		// degrade to the cached snapshot on a registry outage
		if errIs(errScan, types.ErrRegistryUnavailable, types.ErrCallTimeout) && t.db != nil {
			if cached, errLoad := t.db.LoadInventory(net, account); errLoad == nil {
				reply.Cached = true
				reply.Assets = t.annotate(cached)

				return
			} else if !errors.Is(errLoad, store.ErrDataNotFound) {
				log.Printf("[%s] Error loading cached inventory for %s:%e", net, account, errLoad)
			}
		}

		err = errScan

		return
	}

	reply.Assets = t.annotate(recs)
}

// annotate decorates raw asset records with derived status and document URLs.
func (t *Tracker) annotate(recs []types.AssetRecord) []assetView {
	now := t.now()

	views := make([]assetView, len(recs))
	for i, rec := range recs {
		views[i] = assetView{AssetRecord: rec, Status: status.Compute(rec.MfgTime, rec.ExpTime, now)}

		if url, err := cas.URL(t.casGw, rec.DocHash); err == nil {
			views[i].DocURL = url
		}
	}

	return views
}

// provenanceHandler replies the ownership history of the token. An empty list means no history could be
// reconstructed, which the client renders as "no history available" rather than an error.
func (t *Tracker) provenanceHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var recs []types.OwnershipRecord

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(recs)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s records:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(recs), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	var id uint64
	if id, err = tokenOf(r); err != nil {
		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	recs = t.rec.Reconstruct(r.Context(), id, set)

	// cache reconstructed chains so a later outage can still show history
	if t.db != nil && len(recs) > 0 {
		if errSave := t.db.SaveChain(net, id, recs); errSave != nil {
			log.Printf("[%s] Error caching chain of token %d:%e", net, id, errSave)
		}
	}

	if len(recs) == 0 && t.db != nil {
		if cached, errLoad := t.db.LoadChain(net, id); errLoad == nil {
			recs = cached
		}
	}
}

// documentHandler resolves the asset's content hash against the content-addressed store gateway and replies the
// retrieval URL.
func (t *Tracker) documentHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var url string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errIs(err, cas.ErrNoHash, types.ErrTokenMissing) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Body = url

			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s url:%s err:%e\n", r.RemoteAddr, r.RequestURI, url, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	var id uint64
	if id, err = tokenOf(r); err != nil {
		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	rec, errDet := set.AssetDetails(r.Context(), id)
	if errDet != nil {
		err = errDet

		return
	}

	url, err = cas.URL(t.casGw, rec.DocHash)
}

// transferHandler hands the asset over to another account and replies the transaction hash.
func (t *Tracker) transferHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var hash string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = hash

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request and tx hash
		log.Printf("httpreq from %v %s hash:%s err:%e\n", r.RemoteAddr, r.RequestURI, hash, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	var id uint64
	if id, err = tokenOf(r); err != nil {
		return
	}

	var req TransferReq
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding transfer request %+v\n", r.Body)

		return
	}

	if !strings.HasPrefix(util.NormAddr(req.To), "0x") {
		err = ErrNoAddr

		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	hash, err = set.Transfer(r.Context(), req.To, id)
}

// listAssetHandler puts the asset up for sale on the marketplace contract and replies the transaction hash.
func (t *Tracker) listAssetHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var hash string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = hash

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request and tx hash
		log.Printf("httpreq from %v %s hash:%s err:%e\n", r.RemoteAddr, r.RequestURI, hash, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	var id uint64
	if id, err = tokenOf(r); err != nil {
		return
	}

	var req ListingReq
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding listing request %+v\n", r.Body)

		return
	}

	price, ok := new(big.Int).SetString(req.Price, 10)
	if !ok || price.Sign() < 0 {
		err = ErrBadRequest

		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	hash, err = set.List(r.Context(), id, price)
}

// listingHandler replies the marketplace listing of the token.
func (t *Tracker) listingHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var listing types.Listing

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errIs(err, types.ErrTokenMissing) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(listing)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s listing:%+v err:%e\n", r.RemoteAddr, r.RequestURI, listing, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	var id uint64
	if id, err = tokenOf(r); err != nil {
		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	listing, err = set.Listing(r.Context(), id)
}

// roleHandler replies the identity-registry role of the given address.
func (t *Tracker) roleHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var role types.Role

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = role.String()

			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s role:%s err:%e\n", r.RemoteAddr, r.RequestURI, role, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	var net string
	if net, err = t.netOf(r); err != nil {
		return
	}

	v := mux.Vars(r)

	address, ok := v["address"]
	if !ok || !strings.HasPrefix(util.NormAddr(address), "0x") {
		err = ErrNoAddr

		return
	}

	set, errSet := t.gw.Session().Set(net)
	if errSet != nil {
		err = errSet

		return
	}

	role, err = set.Role(r.Context(), address)
}

// netOf resolves the network of a request. When only one network is configured, it is implied.
func (t *Tracker) netOf(r *http.Request) (string, error) {
	net, ok := r.Form["net"]
	if !ok {
		if len(t.bc) == 1 {
			for name := range t.bc {
				return name, nil
			}
		}

		return "", ErrMissingNet
	}

	if len(net) != 1 { // we only allow 1 net per request
		return "", ErrMissingNet
	}

	if _, ok := t.bc[net[0]]; !ok {
		return "", ErrNoNet
	}

	return net[0], nil
}

// tokenOf parses the token id out of the request uri.
func tokenOf(r *http.Request) (uint64, error) {
	v := mux.Vars(r)

	raw, ok := v["id"]
	if !ok {
		return 0, ErrNoID
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrNoID
	}

	return id, nil
}
