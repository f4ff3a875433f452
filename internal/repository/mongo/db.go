package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI and
// pings the primary before returning the client.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connection may succeed while the server is unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection concurrently.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	g, ctx := errgroup.WithContext(ctx)
	ensure := func(name string, fn func(context.Context, *mongo.Collection) error) {
		g.Go(func() error {
			if err := fn(ctx, db.Collection(name)); err != nil {
				return fmt.Errorf("indexes for %s: %w", name, err)
			}
			return nil
		})
	}
	ensure(accountCollectionName, EnsureAccountIndexes)
	ensure(profileCollectionName, EnsureProfileIndexes)
	ensure(partnerApplicationCollectionName, EnsurePartnerApplicationIndexes)
	ensure(programCollectionName, EnsureProgramIndexes)
	ensure(uploadCollectionName, EnsureUploadIndexes)
	return g.Wait()
}
