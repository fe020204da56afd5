// Package msg defines the interface for different message brokers.
package msg

import (
	"sync"

	"github.com/medtrace/psync/lib/ledger/types"
)

// Event kinds published by the sync service.
const (
	SESSION   = "session"
	INVENTORY = "inventory"
)

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// publish side: session transitions and completed scans for front-ends
	SendEvent(net string, e types.Event) error
	GetEvents(net string, mut *sync.Mutex) (<-chan types.Event, <-chan error, error)

	// request side: external systems asking for a rescan
	SendRefresh(net string, r types.RefreshReq) error
	GetRefreshReqs(net string, mut *sync.Mutex) (<-chan types.RefreshReq, <-chan error, error)
}
