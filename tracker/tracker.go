// Package tracker implements the provenance tracking microservice.
//
// This microservice implements a RESTful API for clients to establish a wallet session, inspect the tokenized assets
// the connected account owns on the configured ledger networks and reconstruct each asset's ownership provenance.
package tracker

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/medtrace/psync/inventory"
	"github.com/medtrace/psync/lib/ledger"
	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/msg"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/lib/store/db"
	"github.com/medtrace/psync/lib/util"
	"github.com/medtrace/psync/provenance"
	"github.com/medtrace/psync/session"
)

// AccountSelector is the account-switching surface of the wallet runtime, when the runtime has one. Switches surface
// back through the gateway's account-change listener, the same path a browser wallet switch would take.
type AccountSelector interface {
	Select(wallet uint32, change uint8, id uint32) (string, error)
	Drop()
}

// Tracker contains the data necessary to deliver the service
type Tracker struct {
	dbtype  string
	db      store.DB                // cache db connection, may be nil
	mb      msg.MsgBroker           // message broker, may be nil
	bc      map[string]ledger.Chain // ledger clients
	gw      *session.Gateway
	scanner *inventory.Scanner
	rec     *provenance.Reconstructor
	sel     AccountSelector // may be nil
	casGw   string          // content-addressed store gateway
	s       *http.Server    // http server
	ss      *http.Server    // https server
	sc      chan struct{}   // http server channel used for graceful shutdowns
	unsub   func()          // session subscription teardown
}

// New returns a pointer to a new Tracker service
func New(dbtype string, dbConn store.DB, mb msg.MsgBroker, bc map[string]ledger.Chain, gw *session.Gateway,
	scanner *inventory.Scanner, rec *provenance.Reconstructor, sel AccountSelector, casGw string) *Tracker {
	return &Tracker{
		dbtype:  dbtype,
		db:      dbConn,
		mb:      mb,
		bc:      bc,
		gw:      gw,
		scanner: scanner,
		rec:     rec,
		sel:     sel,
		casGw:   casGw,
	}
}

// Stop shuts down the http servers implementing the RESTful API and closes gracefully the connections to message
// broker and database, and the gateway's wallet listener.
func (t *Tracker) Stop() {
	var err error
	// shutdown http server
	if t.s != nil {
		if err = t.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}
	if t.ss != nil {
		if err = t.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%e", err)
		}
	}
	close(t.sc) // close server channels to indicate shutdowns have finished
	// stop session event publishing
	if t.unsub != nil {
		t.unsub()
	}
	// unregister the wallet listener
	t.gw.Close()
	// close message broker
	if t.mb != nil {
		if err = t.mb.Close(); err != nil {
			log.Printf("Error closing message broker:%e", err)
		}
	}
	// close database
	if t.db != nil {
		err = db.Close(t.dbtype, t.db)
		log.Printf("Disconnecting %v database, err:%e\n", t.dbtype, err)
	}
}

// ManageSessionEvents starts a go routine that republishes session transitions to the message broker and clears the
// session-scoped inventory cache on disconnect.
func (t *Tracker) ManageSessionEvents() {
	snaps, unsub := t.gw.Session().Subscribe()
	t.unsub = unsub

	var last session.Snapshot

	go func() {
		for snap := range snaps {
			// clear session-scoped cache when a connected account goes away
			if t.db != nil && last.Account != "" && snap.Account != last.Account {
				for net := range t.bc {
					if err := t.db.DeleteInventory(net, last.Account); err != nil {
						log.Printf("[%s] Error clearing inventory cache for %s:%e", net, last.Account, err)
					}
				}
			}

			if t.mb != nil {
				for net := range t.bc {
					e := types.Event{Net: net, Kind: msg.SESSION, Account: snap.Account, Status: snap.Status.String()}
					if err := t.mb.SendEvent(net, e); err != nil {
						log.Printf("[%s] Error sending session event:%e", net, err)
					}
				}
			}

			last = snap
		}
	}()
}

// ManageRefreshReqs starts a go routine per network to receive and serve rescan requests sent by external systems
// through the message broker.
func (t *Tracker) ManageRefreshReqs() error {
	if t.mb == nil {
		return nil
	}

	for net := range t.bc {
		var mut *sync.Mutex = new(sync.Mutex)

		mut.Lock()

		reqCh, errCh, err := t.mb.GetRefreshReqs(net, mut)
		if err != nil {
			return err
		}

		go func(netName string) {
			log.Printf("[%s] Start listening to refresh request channel", netName)

			for {
				select {
				case req, ok := (<-reqCh):
					if !ok {
						log.Printf("[%s] Stop listening to refresh request channel", netName)

						return
					}

					log.Printf("[%s] Received refresh request %+v", netName, req)

					if _, err := t.refresh(context.Background(), netName, util.NormAddr(req.Account)); err != nil {
						log.Printf("[%s] Refresh for %s failed:%e", netName, req.Account, err)
					}

					mut.Unlock()
				case e, ok := (<-errCh):
					if !ok {
						log.Printf("[%s] Stop listening to refresh request channel", netName)

						return
					}

					log.Printf("[%s] Received error %+v", netName, e)
				}
			}
		}(net)
	}

	return nil
}

// refresh scans the inventory of account on net and commits the result to cache and broker. Results of a scan whose
// originating account no longer matches the session account are discarded at this write boundary, never committed.
func (t *Tracker) refresh(ctx context.Context, net, account string) ([]types.AssetRecord, error) {
	sess := t.gw.Session()

	set, err := sess.Set(net)
	if err != nil {
		return nil, err
	}

	recs, err := t.scanner.Scan(ctx, account, set)
	if err != nil {
		return nil, err
	}

	// staleness check: the session may have moved on while the scan was in flight
	if !util.EqualAddr(sess.Account(), account) {
		return nil, types.ErrStaleResult
	}

	if t.db != nil {
		if err := t.db.SaveInventory(net, account, recs); err != nil {
			log.Printf("[%s] Error caching inventory for %s:%e", net, account, err)
		}
	}

	if t.mb != nil {
		e := types.Event{Net: net, Kind: msg.INVENTORY, Account: account, Assets: len(recs)}
		if err := t.mb.SendEvent(net, e); err != nil {
			log.Printf("[%s] Error sending inventory event:%e", net, err)
		}
	}

	return recs, nil
}

// now is the service clock used to annotate assets with derived status.
func (t *Tracker) now() time.Time {
	return time.Now().UTC()
}

// errIs is a small helper for handler error classification.
func errIs(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
