// Package mongo implements the cache interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/store"
	"github.com/medtrace/psync/lib/util"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// SaveInventory upserts the inventory snapshot of (net, account).
func (m *Mongo) SaveInventory(net, account string, recs []types.AssetRecord) error {
	account = util.NormAddr(account)

	col := m.c.Database("inv").Collection(net)

	_, err := col.UpdateOne(context.Background(),
		bson.M{"account": account}, // filter
		bson.M{"$set": bson.M{"account": account, "assets": recs}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save inventory to db: %w", err)
	}

	return nil
}

// LoadInventory returns the cached inventory snapshot of (net, account).
func (m *Mongo) LoadInventory(net, account string) ([]types.AssetRecord, error) {
	var inv store.Inventory

	sr := m.c.Database("inv").Collection(net).FindOne(context.Background(), bson.M{"account": util.NormAddr(account)})

	err := sr.Decode(&inv)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return nil, store.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load inventory from db: %w", err)
	}

	return inv.Assets, nil
}

// DeleteInventory drops the cached inventory snapshot of (net, account). Called on disconnect, the cache is
// session-scoped.
func (m *Mongo) DeleteInventory(net, account string) error {
	_, err := m.c.Database("inv").Collection(net).DeleteOne(context.Background(),
		bson.M{"account": util.NormAddr(account)})

	return err
}

// SaveChain upserts the provenance chain of (net, token).
func (m *Mongo) SaveChain(net string, tokenID uint64, recs []types.OwnershipRecord) error {
	col := m.c.Database("prov").Collection(net)

	_, err := col.UpdateOne(context.Background(),
		bson.M{"tokenId": tokenID}, // filter
		bson.M{"$set": bson.M{"tokenId": tokenID, "records": recs}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save chain to db: %w", err)
	}

	return nil
}

// LoadChain returns the cached provenance chain of (net, token).
func (m *Mongo) LoadChain(net string, tokenID uint64) ([]types.OwnershipRecord, error) {
	var ch store.Chain

	sr := m.c.Database("prov").Collection(net).FindOne(context.Background(), bson.M{"tokenId": tokenID})

	err := sr.Decode(&ch)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return nil, store.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load chain from db: %w", err)
	}

	return ch.Records, nil
}
