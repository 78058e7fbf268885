// ABOUTME: Store interface and data types for the compass document store
// ABOUTME: Defines Document, Schema, Query and the Store interface over named collections

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrUnknownCollection is returned for operations on a collection not in the schema.
var ErrUnknownCollection = errors.New("unknown collection")

// ErrUnknownIndex is returned when a query names an index the collection does not declare.
var ErrUnknownIndex = errors.New("unknown index")

// ErrBadPredicate is returned when an equality predicate uses a field
// the named index was not declared over.
var ErrBadPredicate = errors.New("predicate field not covered by index")

// CreatedAtField is the reserved index field name that refers to a
// document's creation timestamp rather than a body field.
const CreatedAtField = "createdAt"

// Document is a single record in a collection. Body holds the full JSON
// form of the record; ID and CreatedAt mirror the authoritative columns.
type Document struct {
	ID        string
	CreatedAt time.Time
	Body      json.RawMessage
}

// Index declares a secondary index over body fields. Fields may include
// CreatedAtField to index the creation timestamp alongside body fields.
type Index struct {
	Name   string
	Fields []string
}

// Collection declares a named collection and its indexes.
type Collection struct {
	Name    string
	Indexes []Index
}

// Schema is the set of collections a store serves.
type Schema []Collection

func (s Schema) collection(name string) (*Collection, bool) {
	for i := range s {
		if s[i].Name == name {
			return &s[i], true
		}
	}
	return nil, false
}

func (c *Collection) index(name string) (*Index, bool) {
	for i := range c.Indexes {
		if c.Indexes[i].Name == name {
			return &c.Indexes[i], true
		}
	}
	return nil, false
}

// Query describes an index-backed read over one collection.
//
// Equals holds equality predicates on fields the named index was
// declared over. Filter holds additional equality predicates on
// arbitrary body fields; those are applied as a linear scan within the
// index range and are acceptable only for bounded collections. A query
// with an empty Index and only Filter predicates is a full linear scan.
type Query struct {
	Collection    string
	Index         string
	Equals        map[string]any
	Filter        map[string]any
	Descending    bool      // order by creation time, newest first
	Limit         int       // 0 means no limit
	CreatedBefore time.Time // zero means no cutoff
}

// Store is the generic document persistence capability. All reads are
// materialized snapshots taken at call time, not live cursors.
type Store interface {
	// Insert stores a new document. A zero ID or CreatedAt is filled in.
	Insert(ctx context.Context, collection string, doc *Document) (string, error)

	// Patch merges the given fields into an existing document's body.
	// Returns ErrNotFound if the id is absent.
	Patch(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Returns ErrNotFound if the id is absent.
	Delete(ctx context.Context, collection, id string) error

	// Get retrieves a document by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// QueryByIndex runs an equality query against a declared index.
	QueryByIndex(ctx context.Context, q Query) ([]*Document, error)

	// Close releases any resources held by the store.
	Close() error
}
