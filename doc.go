// Package psync and its sub-packages implement the chain-state synchronization backend for a pharmaceutical
// provenance application.
/*
psync provides a tracker microservice (package tracker) that implements a RESTful API for clients to establish a
wallet session, inspect the tokenized pharmaceutical assets owned by the connected account and reconstruct each
asset's chain of custody.

Architecture

A wallet session gateway (package session) owns the session lifecycle. It requests account access from a wallet
runtime (package lib/provider), binds the provenance contracts on every configured ledger network for the granted
account, and listens for account changes pushed by the wallet, tearing down and rebuilding the contract bindings when
the account switches. Contract bindings are revocable (package lib/contract), so any in-flight reader holding a
binding of a finished session fails fast instead of returning data for the wrong account.

The ledger layer (package lib/ledger) is implemented so new network interfaces can be developed and added. Its EVM
implementation (package lib/ledger/evm) binds the asset registry, marketplace and identity registry contracts and maps
transport and revert failures into a small error taxonomy the upper layers act on. The tracker connects to the
networks indicated in the JSON config file provided at startup.

Owned assets are discovered by a bounded trailing-window scan over the registry's token counter (package inventory),
and each asset's chain of custody is reconstructed from the on-chain history with a two-tier fallback (package
provenance). A cache database (package lib/store) keeps the last good inventory snapshot and reconstructed chains per
session, so a registry outage degrades to stale data instead of an empty screen. The database layer is product
agnostic, with MongoDB and PostgreSQL implementations.

Session transitions and finished scans are republished to a message broker (package lib/msg), and external systems
can request rescans through it. The broker is implemented as a product agnostic layer and is configured via the JSON
config file at service startup.

The microservice can also be monitored via a Prometheus API by setting the flag "-m" at startup.

Tracker

The tracker microservice (package tracker) can be started running cmd/syncd/main.go. It exposes an HTTP RESTful API
that can be used by multiple clients: get the available networks, connect and disconnect the wallet session, switch
the HD account, scan owned assets with derived expiry status, reconstruct provenance, resolve asset documents against
a content-addressed store gateway, transfer assets, and manage marketplace listings.

*/
package psync
