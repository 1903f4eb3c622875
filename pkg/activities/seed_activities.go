package activities

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mouradhm/mongo-seed/pkg/config"
	seederrors "github.com/mouradhm/mongo-seed/pkg/errors"
	"github.com/mouradhm/mongo-seed/pkg/manifest"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

// Session is an authenticated connection owned by a single seed run
type Session struct {
	client     *mongo.Client
	credential models.Credential
}

// DatabaseHandle scopes operations to one logical database
type DatabaseHandle struct {
	db *mongo.Database
}

// Authenticate connects with the admin credential from cfg and verifies it.
// Every failure, including an unreachable server, is an authentication error.
func Authenticate(ctx context.Context, cfg *config.Config) (*Session, error) {
	cred := cfg.Credential()

	client, err := connectToMongoDB(ctx, cfg)
	if err != nil {
		return nil, seederrors.NewAuthError(
			fmt.Sprintf("failed to authenticate as %q on database %q", cred.Username, cred.AuthDatabase),
		).WithCause(err)
	}

	return &Session{client: client, credential: cred}, nil
}

// Close disconnects the session
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// User returns the authenticated principal
func (s *Session) User() string {
	return s.credential.Username
}

// SelectDatabase returns a handle on the named database. The database does
// not need to exist; MongoDB creates it on first write.
func SelectDatabase(s *Session, name string) *DatabaseHandle {
	return NewDatabaseHandle(s.client.Database(name))
}

// NewDatabaseHandle wraps an existing driver database
func NewDatabaseHandle(db *mongo.Database) *DatabaseHandle {
	return &DatabaseHandle{db: db}
}

// Name returns the database name
func (h *DatabaseHandle) Name() string {
	return h.db.Name()
}

func (h *DatabaseHandle) collection(name string) *mongo.Collection {
	return h.db.Collection(name)
}

// EnsureCollections creates every collection in names that does not exist yet.
// Duplicate names are ignored. Calling it again is a no-op.
func EnsureCollections(ctx context.Context, db *DatabaseHandle, names []string) ([]models.CollectionStatus, error) {
	unique := dedupe(names)
	if len(unique) == 0 {
		return nil, nil
	}

	existing, err := existingCollections(ctx, db.db, unique)
	if err != nil {
		return nil, seederrors.NewSeedError(seederrors.ErrorTypeCollectionCreate, "failed to check existing collections").WithCause(err)
	}

	statuses := make([]models.CollectionStatus, 0, len(unique))
	for _, name := range unique {
		if existing[name] {
			statuses = append(statuses, models.CollectionStatus{Name: name})
			continue
		}

		err := db.db.CreateCollection(ctx, name)
		switch {
		case err == nil:
			statuses = append(statuses, models.CollectionStatus{Name: name, Created: true})
		case isNamespaceExists(err):
			// Another seeder created it between the list and the create
			statuses = append(statuses, models.CollectionStatus{Name: name})
		default:
			return statuses, seederrors.NewCollectionCreateError(name).WithCause(err)
		}
	}

	return statuses, nil
}

// EnsureIndexes creates the declared indexes on a collection and returns how
// many were requested. Creating an index that already exists with the same
// definition is a no-op on the server.
func EnsureIndexes(ctx context.Context, db *DatabaseHandle, collection string, indexes []manifest.Index) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}

	names, err := db.collection(collection).Indexes().CreateMany(ctx, indexModels(indexes))
	if err != nil {
		return 0, seederrors.NewSeedError(seederrors.ErrorTypeCollectionCreate, "failed to create indexes").
			WithCollection(collection).WithCause(err)
	}
	return len(names), nil
}

// SeedDocuments inserts docs into collection as one ordered batch, after
// applying the seed policy. Under replace the collection is cleared even when
// docs is empty. On failure the result still reports which documents made it in.
func SeedDocuments(
	ctx context.Context,
	db *DatabaseHandle,
	collection string,
	docs []models.Document,
	policy models.SeedPolicy,
) (models.InsertResult, error) {
	result := models.InsertResult{CollectionName: collection}
	coll := db.collection(collection)

	switch policy {
	case models.PolicySkipNonEmpty, "":
		if len(docs) == 0 {
			return result, nil
		}
		nonEmpty, err := collectionHasDocuments(ctx, coll)
		if err != nil {
			return result, seederrors.NewInsertError(collection).WithCause(err)
		}
		if nonEmpty {
			result.Skipped = true
			result.SkipReason = "collection already contains documents"
			return result, nil
		}
	case models.PolicyReplace:
		res, err := coll.DeleteMany(ctx, bson.D{})
		if err != nil {
			return result, seederrors.NewInsertError(collection).
				WithCause(fmt.Errorf("failed to clear collection: %w", err))
		}
		result.DeletedCount = res.DeletedCount
	case models.PolicyAppend:
	default:
		return result, seederrors.NewConfigError(fmt.Sprintf("unknown seed policy %q", policy)).
			WithCause(seederrors.ErrUnknownPolicy)
	}

	if len(docs) == 0 {
		return result, nil
	}

	batch := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, toBSON(doc))
	}

	// Ordered so the documents land in manifest order and the server stops at the first failure
	_, err := coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	result.InsertedIndexes = insertedIndexes(len(batch), err)
	result.InsertedCount = len(result.InsertedIndexes)
	if err != nil {
		return result, seederrors.NewInsertError(collection).WithCause(err)
	}

	return result, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
