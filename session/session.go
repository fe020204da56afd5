// Package session holds the process-wide wallet session: current account, connection status and the contract binding
// sets of every configured network. The session is an explicit state machine with a single writer, the Gateway; every
// other component reads snapshots or subscribes to transition notifications.
package session

import (
	"errors"
	"sync"

	"github.com/medtrace/psync/lib/contract"
)

// Status values of the session state machine.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Errored
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "error"
	}

	return "disconnected"
}

// ErrNotConnected is returned by accessors that are only valid while the session is connected.
var ErrNotConnected = errors.New("session not connected")

// Snapshot is the immutable view of the session handed to readers.
type Snapshot struct {
	Status    Status `json:"status"`
	Account   string `json:"account,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Session is the process-wide wallet session state. Mutation is confined to the unexported transition methods which
// only the Gateway drives; account is non-empty only while the status is Connected.
type Session struct {
	l       sync.Mutex
	status  Status
	account string
	lastErr string
	sets    map[string]*contract.Set
	subs    map[int]chan Snapshot
	nextSub int
}

// New returns a session in its initial Disconnected state.
func New() *Session {
	return &Session{subs: make(map[int]chan Snapshot)}
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.l.Lock()
	defer s.l.Unlock()

	return Snapshot{Status: s.status, Account: s.account, LastError: s.lastErr}
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.l.Lock()
	defer s.l.Unlock()

	return s.status
}

// Account returns the connected account, empty when not connected.
func (s *Session) Account() string {
	s.l.Lock()
	defer s.l.Unlock()

	return s.account
}

// Set returns the binding set of network net. Fails fast when the session is not connected so no caller can reach for
// stale bindings.
func (s *Session) Set(net string) (*contract.Set, error) {
	s.l.Lock()
	defer s.l.Unlock()

	if s.status != Connected {
		return nil, ErrNotConnected
	}

	set, ok := s.sets[net]
	if !ok {
		return nil, errors.New("no binding set for network " + net)
	}

	return set, nil
}

// Subscribe registers a listener for session transitions. The returned function unregisters it deterministically; no
// subscription leaks across remounts of the consumer.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.l.Lock()
	defer s.l.Unlock()

	id := s.nextSub
	s.nextSub++

	ch := make(chan Snapshot, 8)
	s.subs[id] = ch

	return ch, func() {
		s.l.Lock()
		defer s.l.Unlock()

		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// notify publishes the current snapshot to all subscribers without blocking. Caller must hold the lock.
func (s *Session) notify() {
	snap := Snapshot{Status: s.status, Account: s.account, LastError: s.lastErr}
	for _, sub := range s.subs {
		select {
		case sub <- snap:
		default: // slow subscriber, drop rather than stall the writer
		}
	}
}

// revokeSets invalidates and drops all binding sets. Caller must hold the lock.
func (s *Session) revokeSets() {
	for _, set := range s.sets {
		set.Revoke()
	}
	s.sets = nil
}

// beginConnect transitions to Connecting. Any previous account and bindings are invalid from this point.
func (s *Session) beginConnect() {
	s.l.Lock()
	defer s.l.Unlock()

	s.status = Connecting
	s.account = ""
	s.lastErr = ""
	s.revokeSets()
	s.notify()
}

// fail transitions to Errored keeping the cause for display. Retrying connect is permitted from here.
func (s *Session) fail(err error) {
	s.l.Lock()
	defer s.l.Unlock()

	s.status = Errored
	s.account = ""
	s.lastErr = err.Error()
	s.revokeSets()
	s.notify()
}

// connected transitions to Connected publishing the account and its freshly built binding sets.
func (s *Session) connected(account string, sets map[string]*contract.Set) {
	s.l.Lock()
	defer s.l.Unlock()

	s.status = Connected
	s.account = account
	s.lastErr = ""
	s.revokeSets()
	s.sets = sets
	s.notify()
}

// disconnect resets the session to its initial state, revoking all bindings.
func (s *Session) disconnect() {
	s.l.Lock()
	defer s.l.Unlock()

	s.status = Disconnected
	s.account = ""
	s.lastErr = ""
	s.revokeSets()
	s.notify()
}
