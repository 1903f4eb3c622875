package activities

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mouradhm/mongo-seed/pkg/config"
	"github.com/mouradhm/mongo-seed/pkg/manifest"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

const (
	appName = "mongoseed"

	// codeNamespaceExists is returned by create when the collection is already there
	codeNamespaceExists = 48

	defaultConnectTimeout = 10 * time.Second
)

// clientOptions builds the driver options for a seed run from the config
func clientOptions(cfg *config.Config) *options.ClientOptions {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientOptions := options.Client().ApplyURI(cfg.MongoURI)
	clientOptions.SetAuth(options.Credential{
		AuthSource: cfg.AuthDatabase,
		Username:   cfg.AdminUser,
		Password:   cfg.AdminPassword,
	})
	clientOptions.SetAppName(appName)
	clientOptions.SetConnectTimeout(timeout)
	clientOptions.SetServerSelectionTimeout(timeout)

	// A seed run issues one operation at a time
	clientOptions.SetMaxPoolSize(2)
	clientOptions.SetMinPoolSize(0)
	clientOptions.SetRetryWrites(false)
	clientOptions.SetRetryReads(false)
	clientOptions.SetCompressors([]string{"snappy"})

	return clientOptions
}

// connectToMongoDB establishes an authenticated connection to MongoDB
func connectToMongoDB(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := clientOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client options: %w", err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping forces a handshake, which is where the credential is checked
	pingCtx, cancel := context.WithTimeout(ctx, *opts.ServerSelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// existingCollections reports which of names already exist in db
func existingCollections(ctx context.Context, db *mongo.Database, names []string) (map[string]bool, error) {
	found, err := db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	existing := make(map[string]bool, len(found))
	for _, name := range found {
		existing[name] = true
	}
	return existing, nil
}

// isNamespaceExists reports whether err is the server saying the collection already exists
func isNamespaceExists(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorCode(codeNamespaceExists)
	}
	return false
}

// collectionHasDocuments reports whether the collection holds at least one document
func collectionHasDocuments(ctx context.Context, collection *mongo.Collection) (bool, error) {
	count, err := collection.CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count documents: %w", err)
	}
	return count > 0, nil
}

// indexModels converts manifest indexes into driver index models
func indexModels(indexes []manifest.Index) []mongo.IndexModel {
	out := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		// bson.D keeps the key order, which matters for compound indexes
		keys := bson.D{}
		for _, k := range idx.Keys {
			keys = append(keys, bson.E{Key: k.Field, Value: k.Order})
		}

		opts := options.Index()
		if idx.Name != "" {
			opts.SetName(idx.Name)
		}
		if idx.Unique {
			opts.SetUnique(true)
		}

		out = append(out, mongo.IndexModel{
			Keys:    keys,
			Options: opts,
		})
	}
	return out
}

// toBSON converts a seed document into a bson.D with fields in sorted order
func toBSON(doc models.Document) bson.D {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: doc[k]})
	}
	return out
}

// insertedIndexes works out which documents of an ordered batch of size n
// were written. The server stops an ordered insert at the first write error,
// so every document before the lowest failing index went in.
func insertedIndexes(n int, err error) []int {
	if err == nil {
		return sequence(n)
	}

	var writeErrs []mongo.WriteError
	var bulkErr mongo.BulkWriteException
	var writeErr mongo.WriteException
	switch {
	case errors.As(err, &bulkErr):
		for _, e := range bulkErr.WriteErrors {
			writeErrs = append(writeErrs, e.WriteError)
		}
	case errors.As(err, &writeErr):
		writeErrs = writeErr.WriteErrors
	default:
		// Connectivity or command failure: nothing is known to have landed
		return nil
	}

	if len(writeErrs) == 0 {
		// Only a write concern error; the writes were applied
		return sequence(n)
	}

	first := n
	for _, e := range writeErrs {
		if e.Index < first {
			first = e.Index
		}
	}
	return sequence(first)
}

func sequence(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
