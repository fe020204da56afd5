// Package provider defines the interface to the external wallet runtime that supplies accounts, signing keys and
// account-change notifications. The core never implements signing itself, it only drives whatever runtime is plugged
// in.
package provider

import (
	"context"
	"errors"
)

// Errors surfaced while establishing a session with the wallet runtime.
var (
	ErrNoWallet = errors.New("no wallet runtime detected")
	ErrRejected = errors.New("account access rejected by the wallet")
	ErrProvider = errors.New("wallet runtime failure")
)

// Signer is a credential-bearing handle able to authorize state-changing ledger calls for one account.
type Signer interface {
	// Address returns the account the signer acts for, in canonical lowercase form.
	Address() string
	// PrivateKey returns the raw signing key bytes. Ledger clients convert these to whatever key type their
	// transaction machinery needs.
	PrivateKey() ([]byte, error)
}

// Runtime is the external wallet runtime. RequestAccounts mirrors the wallet prompt: it returns the accounts the user
// exposes, first element being the active one, or an empty slice when the wallet is locked. AccountEvents delivers an
// account list on every wallet-side change; an empty list means the wallet disconnected.
type Runtime interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	Signer(account string) (Signer, error)
	AccountEvents() <-chan []string
	Close()
}
