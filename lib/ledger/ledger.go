// Package ledger defines the interface required for all ledger network connections.
package ledger

import (
	"log"
	"math/big"

	"github.com/medtrace/psync/lib/config"
	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger/evm"
	"github.com/medtrace/psync/lib/provider"
)

// Chain is a connection to one ledger network. Bind constructs the typed contract handles for the given signer; it is
// local and static, no network calls happen at bind time. A nil signer yields a read-only registry.
type Chain interface {
	Close()
	Balance(account string) (*big.Int, error)
	Bind(signer provider.Signer) (contract.Registry, error)
}

// Init loads all the clients read from the config to ledger networks into a map.
func Init(lc []config.LedgerConfig, callTimeout int) (m map[string]Chain, err error) {
	m = make(map[string]Chain)

	for _, l := range lc {
		var tmp *evm.EVM

		if tmp, err = evm.Init(l, callTimeout); err != nil {
			return
		}

		m[l.Name] = tmp
	}

	if len(m) == 0 {
		log.Print("No ledger networks configured.")
	}

	return
}

// End closes gracefully all the ledger clients opened.
func End(lc map[string]Chain) {
	for _, l := range lc {
		l.Close()
	}
}
