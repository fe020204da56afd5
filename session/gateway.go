package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger"
	"github.com/medtrace/psync/lib/provider"
	"github.com/medtrace/psync/lib/util"
)

// Gateway wraps the external wallet runtime and is the session's single writer. It requests account access, builds
// the contract binding sets and keeps the session in step with account-change notifications from the runtime.
type Gateway struct {
	rt     provider.Runtime
	chains map[string]ledger.Chain
	s      *Session

	watchOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewGateway returns a gateway driving session s from runtime rt. A nil runtime models the wallet being absent
// altogether; Connect then fails with provider.ErrNoWallet.
func NewGateway(rt provider.Runtime, chains map[string]ledger.Chain, s *Session) *Gateway {
	return &Gateway{rt: rt, chains: chains, s: s, done: make(chan struct{})}
}

// Session returns the session the gateway writes to.
func (g *Gateway) Session() *Session {
	return g.s
}

// Connect requests account access from the wallet runtime and, on success, binds the contract suite of every network
// for the exposed account and registers the persistent account-change listener. Connection failures surface as
// provider.ErrNoWallet, provider.ErrRejected or provider.ErrProvider and leave the session in the Errored state, from
// which a retry is permitted.
func (g *Gateway) Connect(ctx context.Context) (string, error) {
	if g.rt == nil {
		g.s.fail(provider.ErrNoWallet)

		return "", provider.ErrNoWallet
	}

	g.s.beginConnect()

	accounts, err := g.rt.RequestAccounts(ctx)
	if err != nil {
		g.s.fail(err)

		return "", err
	}

	if len(accounts) == 0 {
		g.s.fail(provider.ErrRejected)

		return "", provider.ErrRejected
	}

	account := util.NormAddr(accounts[0])

	sets, err := g.bind(account)
	if err != nil {
		g.s.fail(err)

		return "", err
	}

	g.s.connected(account, sets)

	// exactly one delivery path for account events, kept for the gateway's lifetime
	g.watchOnce.Do(func() { go g.watch() })

	return account, nil
}

// Disconnect resets the session and invalidates all bindings.
func (g *Gateway) Disconnect() {
	g.s.disconnect()
}

// Signer returns the signing handle of the connected account. Only valid while the session is Connected.
func (g *Gateway) Signer() (provider.Signer, error) {
	account := g.s.Account()
	if account == "" {
		return nil, ErrNotConnected
	}

	return g.rt.Signer(account)
}

// Close unregisters the account-change listener. Safe to call more than once.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

// bind builds one fresh binding set per network for the account's signer.
func (g *Gateway) bind(account string) (map[string]*contract.Set, error) {
	signer, err := g.rt.Signer(account)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain signer for %s: %w", account, err)
	}

	sets := make(map[string]*contract.Set, len(g.chains))

	for net, chain := range g.chains {
		reg, err := chain.Bind(signer)
		if err != nil {
			return nil, fmt.Errorf("[%s] cannot bind contracts: %w", net, err)
		}

		sets[net] = contract.NewSet(net, reg)
	}

	return sets, nil
}

// watch consumes account events from the runtime until Close or runtime termination.
func (g *Gateway) watch() {
	events := g.rt.AccountEvents()

	for {
		select {
		case <-g.done:
			log.Print("session: account listener unregistered")

			return
		case accounts, ok := <-events:
			if !ok {
				log.Print("session: wallet runtime closed the account event channel")

				return
			}

			g.onAccounts(accounts)
		}
	}
}

// onAccounts applies one account-change notification to the session. An empty list is a wallet-side disconnect; a
// changed first account rebinds the contract suite; a repeated first account is de-duplicated into a no-op.
func (g *Gateway) onAccounts(accounts []string) {
	if len(accounts) == 0 {
		if g.s.Status() != Disconnected {
			log.Print("session: wallet disconnected, resetting session")
			g.s.disconnect()
		}

		return
	}

	account := util.NormAddr(accounts[0])
	if account == g.s.Account() {
		return // no state transition on a repeated account
	}

	log.Printf("session: account changed to %s, rebinding", account)
	g.s.beginConnect()

	sets, err := g.bind(account)
	if err != nil {
		g.s.fail(err)

		return
	}

	g.s.connected(account, sets)
}
