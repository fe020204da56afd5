// Package hdrt implements the wallet runtime interface on top of an HD wallet held by the service. Accounts are
// derived from the configured seed; account switches are driven by API calls and surface through the same
// account-event channel a browser wallet would use.
package hdrt

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"github.com/tarancss/hd"

	"github.com/medtrace/psync/lib/provider"
	"github.com/medtrace/psync/lib/util"
)

// Runtime implements provider.Runtime over a tarancss/hd hierarchical deterministic wallet.
type Runtime struct {
	l      sync.Mutex
	hdw    *hd.HdWallet
	locked bool
	cur    *selection
	events chan []string
	closed bool
}

// selection is the account currently exposed by the runtime.
type selection struct {
	wallet uint32
	change uint8
	id     uint32
	addr   string
	key    []byte
}

// New returns a runtime backed by the HD wallet derived from seed.
func New(seed []byte) (*Runtime, error) {
	hdw, err := hd.Init(seed)
	if err != nil {
		return nil, fmt.Errorf("hdrt: cannot init HD wallet: %w", err)
	}

	return &Runtime{hdw: hdw, events: make(chan []string, 8)}, nil
}

// RequestAccounts exposes the selected account, deriving the first external account when none has been selected yet.
// A locked runtime rejects the request, which is how a user declining the wallet prompt surfaces here.
func (r *Runtime) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrProvider, err)
	}

	r.l.Lock()
	defer r.l.Unlock()

	if r.locked {
		return nil, provider.ErrRejected
	}

	if r.cur == nil {
		sel, err := r.derive(0, hd.External, 0)
		if err != nil {
			return nil, err
		}
		r.cur = sel
	}

	return []string{r.cur.addr}, nil
}

// Signer returns a signing handle for the given account. Only the selected account can sign.
func (r *Runtime) Signer(account string) (provider.Signer, error) {
	r.l.Lock()
	defer r.l.Unlock()

	if r.cur == nil || !util.EqualAddr(account, r.cur.addr) {
		return nil, fmt.Errorf("%w: account %s not selected", provider.ErrProvider, account)
	}

	return &signer{addr: r.cur.addr, key: r.cur.key}, nil
}

// AccountEvents returns the channel account changes are delivered on.
func (r *Runtime) AccountEvents() <-chan []string {
	return r.events
}

// Select switches the runtime to the HD account at (wallet, change, id) and notifies listeners.
func (r *Runtime) Select(wallet uint32, change uint8, id uint32) (string, error) {
	r.l.Lock()
	defer r.l.Unlock()

	sel, err := r.derive(wallet, change, id)
	if err != nil {
		return "", err
	}
	r.cur = sel

	r.emit([]string{sel.addr})

	return sel.addr, nil
}

// Drop clears the selected account and notifies listeners with an empty list, the wallet-disconnected signal.
func (r *Runtime) Drop() {
	r.l.Lock()
	defer r.l.Unlock()

	r.cur = nil
	r.emit([]string{})
}

// SetLocked toggles rejection of account requests.
func (r *Runtime) SetLocked(locked bool) {
	r.l.Lock()
	r.locked = locked
	r.l.Unlock()
}

// Close terminates the event channel. No events can be emitted afterwards.
func (r *Runtime) Close() {
	r.l.Lock()
	defer r.l.Unlock()

	if !r.closed {
		r.closed = true
		close(r.events)
	}
}

// derive computes the address and key of the HD account. Caller must hold the lock.
func (r *Runtime) derive(wallet uint32, change uint8, id uint32) (*selection, error) {
	addr, key, _, err := r.hdw.Address(wallet, change, id)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot derive HD account %d/%d/%d: %s", provider.ErrProvider, wallet, change, id, err)
	}

	return &selection{
		wallet: wallet,
		change: change,
		id:     id,
		addr:   util.NormAddr("0x" + hex.EncodeToString(addr)),
		key:    key,
	}, nil
}

// emit delivers an account event without blocking the caller. Caller must hold the lock.
func (r *Runtime) emit(accounts []string) {
	if r.closed {
		return
	}
	select {
	case r.events <- accounts:
	default:
		log.Printf("hdrt: account event dropped, listener not keeping up")
	}
}

// signer implements provider.Signer for one derived account.
type signer struct {
	addr string
	key  []byte
}

func (s *signer) Address() string {
	return s.addr
}

func (s *signer) PrivateKey() ([]byte, error) {
	return s.key, nil
}
