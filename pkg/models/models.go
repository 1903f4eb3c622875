package models

import "fmt"

// Credential identifies the administrative principal used to authenticate
type Credential struct {
	Username     string `json:"username"`
	Password     string `json:"-"`
	AuthDatabase string `json:"authDatabase"`
}

// Document is a schema-free record inserted into a collection
type Document map[string]interface{}

// SeedPolicy decides what happens to seed data when the target collection already holds documents
type SeedPolicy string

const (
	// PolicySkipNonEmpty leaves a collection alone if it already holds any document
	PolicySkipNonEmpty SeedPolicy = "skip-nonempty"
	// PolicyAppend always inserts the seed documents
	PolicyAppend SeedPolicy = "append"
	// PolicyReplace deletes every document in the collection before inserting
	PolicyReplace SeedPolicy = "replace"
)

// ParseSeedPolicy converts a string into a SeedPolicy
func ParseSeedPolicy(s string) (SeedPolicy, error) {
	switch p := SeedPolicy(s); p {
	case PolicySkipNonEmpty, PolicyAppend, PolicyReplace:
		return p, nil
	case "":
		return PolicySkipNonEmpty, nil
	default:
		return "", fmt.Errorf("unknown seed policy %q (want %s, %s or %s)", s, PolicySkipNonEmpty, PolicyAppend, PolicyReplace)
	}
}

// CollectionStatus reports what EnsureCollections did for one collection
type CollectionStatus struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// InsertResult contains the outcome of seeding one collection
type InsertResult struct {
	CollectionName string `json:"collectionName"`
	// InsertedIndexes lists positions in the seed batch that were written
	InsertedIndexes []int  `json:"insertedIndexes,omitempty"`
	InsertedCount   int    `json:"insertedCount"`
	DeletedCount    int64  `json:"deletedCount,omitempty"`
	Skipped         bool   `json:"skipped"`
	SkipReason      string `json:"skipReason,omitempty"`
}

// CollectionSeedResult contains the result of provisioning a single collection
type CollectionSeedResult struct {
	CollectionName string       `json:"collectionName"`
	Created        bool         `json:"created"`
	IndexesCreated int          `json:"indexesCreated"`
	Insert         InsertResult `json:"insert"`
	Success        bool         `json:"success"`
	ErrorMessage   string       `json:"errorMessage,omitempty"`
}

// SeedResult contains the overall result of a seed run
type SeedResult struct {
	RunID             string                 `json:"runId"`
	Database          string                 `json:"database"`
	CollectionResults []CollectionSeedResult `json:"collectionResults"`
	OverallSuccess    bool                   `json:"overallSuccess"`
	TotalDocuments    int                    `json:"totalDocuments"`
}
