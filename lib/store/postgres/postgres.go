// Package postgres implements the cache interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/lib/util"
)

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection'.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	p := &Postgres{db: db}
	if err = p.ensureSchema(); err != nil {
		return nil, err
	}

	return p, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

func (p *Postgres) ensureSchema() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS inventory (
		net text NOT NULL,
		account text NOT NULL,
		assets jsonb NOT NULL,
		PRIMARY KEY (net, account))`)
	if err != nil {
		return fmt.Errorf("cannot create inventory table: %w", err)
	}

	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS chain (
		net text NOT NULL,
		token bigint NOT NULL,
		records jsonb NOT NULL,
		PRIMARY KEY (net, token))`)
	if err != nil {
		return fmt.Errorf("cannot create chain table: %w", err)
	}

	return nil
}

// SaveInventory upserts the inventory snapshot of (net, account).
func (p *Postgres) SaveInventory(net, account string, recs []types.AssetRecord) error {
	blob, err := json.Marshal(recs)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`INSERT INTO inventory (net, account, assets) VALUES ($1, $2, $3)
		ON CONFLICT (net, account) DO UPDATE SET assets = EXCLUDED.assets`,
		net, util.NormAddr(account), blob)
	if err != nil {
		return fmt.Errorf("could not save inventory to db: %w", err)
	}

	return nil
}

// LoadInventory returns the cached inventory snapshot of (net, account).
func (p *Postgres) LoadInventory(net, account string) ([]types.AssetRecord, error) {
	var blob []byte

	err := p.db.QueryRow(`SELECT assets FROM inventory WHERE net = $1 AND account = $2`,
		net, util.NormAddr(account)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load inventory from db: %w", err)
	}

	var recs []types.AssetRecord
	if err = json.Unmarshal(blob, &recs); err != nil {
		return nil, err
	}

	return recs, nil
}

// DeleteInventory drops the cached inventory snapshot of (net, account).
func (p *Postgres) DeleteInventory(net, account string) error {
	_, err := p.db.Exec(`DELETE FROM inventory WHERE net = $1 AND account = $2`, net, util.NormAddr(account))

	return err
}

// SaveChain upserts the provenance chain of (net, token).
func (p *Postgres) SaveChain(net string, tokenID uint64, recs []types.OwnershipRecord) error {
	blob, err := json.Marshal(recs)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`INSERT INTO chain (net, token, records) VALUES ($1, $2, $3)
		ON CONFLICT (net, token) DO UPDATE SET records = EXCLUDED.records`,
		net, int64(tokenID), blob)
	if err != nil {
		return fmt.Errorf("could not save chain to db: %w", err)
	}

	return nil
}

// LoadChain returns the cached provenance chain of (net, token).
func (p *Postgres) LoadChain(net string, tokenID uint64) ([]types.OwnershipRecord, error) {
	var blob []byte

	err := p.db.QueryRow(`SELECT records FROM chain WHERE net = $1 AND token = $2`, net, int64(tokenID)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load chain from db: %w", err)
	}

	var recs []types.OwnershipRecord
	if err = json.Unmarshal(blob, &recs); err != nil {
		return nil, err
	}

	return recs, nil
}
