package activities

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mouradhm/mongo-seed/pkg/config"
	"github.com/mouradhm/mongo-seed/pkg/manifest"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

func TestClientOptions(t *testing.T) {
	cfg := &config.Config{
		MongoURI:       "mongodb://mongo:27017",
		AdminUser:      "admin",
		AdminPassword:  "password",
		AuthDatabase:   "admin",
		ConnectTimeout: 3 * time.Second,
	}

	opts := clientOptions(cfg)
	require.NoError(t, opts.Validate())

	require.NotNil(t, opts.Auth)
	assert.Equal(t, "admin", opts.Auth.Username)
	assert.Equal(t, "password", opts.Auth.Password)
	assert.Equal(t, "admin", opts.Auth.AuthSource)
	assert.Equal(t, []string{"mongo:27017"}, opts.Hosts)
	assert.Equal(t, 3*time.Second, *opts.ConnectTimeout)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	assert.False(t, *opts.RetryWrites)
	assert.False(t, *opts.RetryReads)
	assert.Equal(t, appName, *opts.AppName)
}

func TestClientOptions_DefaultTimeout(t *testing.T) {
	opts := clientOptions(&config.Config{MongoURI: "mongodb://localhost:27017"})
	assert.Equal(t, defaultConnectTimeout, *opts.ConnectTimeout)
}

func TestIsNamespaceExists(t *testing.T) {
	assert.True(t, isNamespaceExists(mongo.CommandError{Code: 48, Name: "NamespaceExists"}))
	assert.True(t, isNamespaceExists(fmt.Errorf("create: %w", mongo.CommandError{Code: 48})))
	assert.False(t, isNamespaceExists(mongo.CommandError{Code: 13, Name: "Unauthorized"}))
	assert.False(t, isNamespaceExists(errors.New("namespace exists")))
}

func TestIndexModels(t *testing.T) {
	got := indexModels([]manifest.Index{
		{Name: "origin_code", Unique: true, Keys: []manifest.IndexKey{{Field: "origin", Order: 1}, {Field: "code", Order: -1}}},
		{Keys: []manifest.IndexKey{{Field: "name", Order: 1}}},
	})
	require.Len(t, got, 2)

	assert.Equal(t, bson.D{{Key: "origin", Value: 1}, {Key: "code", Value: -1}}, got[0].Keys)
	assert.Equal(t, "origin_code", *got[0].Options.Name)
	assert.True(t, *got[0].Options.Unique)

	assert.Nil(t, got[1].Options.Name)
	assert.Nil(t, got[1].Options.Unique)
}

func TestToBSON_SortsFields(t *testing.T) {
	doc := models.Document{"title": "Software Engineer", "name": "Nicholas Hellmers", "location": "Boulder, CO"}

	assert.Equal(t, bson.D{
		{Key: "location", Value: "Boulder, CO"},
		{Key: "name", Value: "Nicholas Hellmers"},
		{Key: "title", Value: "Software Engineer"},
	}, toBSON(doc))
}

func TestInsertedIndexes(t *testing.T) {
	tests := []struct {
		name string
		n    int
		err  error
		want []int
	}{
		{"success", 3, nil, []int{0, 1, 2}},
		{"empty batch", 0, nil, nil},
		{
			"ordered stop at second document",
			3,
			mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
				{WriteError: mongo.WriteError{Index: 1, Code: 11000, Message: "duplicate key"}},
			}},
			[]int{0},
		},
		{
			"lowest index wins",
			4,
			mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
				{WriteError: mongo.WriteError{Index: 3, Code: 11000}},
				{WriteError: mongo.WriteError{Index: 2, Code: 11000}},
			}},
			[]int{0, 1},
		},
		{
			"first document rejected",
			2,
			mongo.WriteException{WriteErrors: mongo.WriteErrors{{Index: 0, Code: 121}}},
			nil,
		},
		{
			"write concern only",
			2,
			mongo.BulkWriteException{WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"}},
			[]int{0, 1},
		},
		{"network failure", 2, errors.New("connection reset"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, insertedIndexes(tt.n, tt.err))
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"users", "products"}, dedupe([]string{"users", "", "products", "users"}))
}
