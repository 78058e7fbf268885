// ABOUTME: MemoryTable service for per-user long-term memory facts
// ABOUTME: Upsert-by-key with per-(owner,key) serialization and clamped listing

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/docstore"
)

// Memory types
const (
	TypePreference = "preference"
	TypeContext    = "context"
)

// ValidType reports whether t is a known memory type.
func ValidType(t string) bool {
	return t == TypePreference || t == TypeContext
}

// Listing limits. Unlike the message ledger, memory listings are
// defensively clamped.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// ErrNotFound is the deliberately merged not-found/not-owned category
/// for deletes: callers cannot distinguish "doesn't exist" from "not
// yours".
var ErrNotFound = errors.New("memory not found")

// Collection declares the memory facts collection and its index.
var Collection = docstore.Collection{
	Name: "memories",
	Indexes: []docstore.Index{
		{Name: "by_user", Fields: []string{"ownerId"}},
		{Name: "by_user_created", Fields: []string{"ownerId", docstore.CreatedAtField}},
	},
}

// Fact is one long-term memory fact. At most one fact exists per
// (owner, key) pair; Value and UpdatedAt are the only mutable fields.
type Fact struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	MemoryType string    `json:"memoryType"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store defines what the memory table needs from the document store.
type Store interface {
	Insert(ctx context.Context, collection string, doc *docstore.Document) (string, error)
	Patch(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	QueryByIndex(ctx context.Context, q docstore.Query) ([]*docstore.Document, error)
}

// Service is the memory table.
type Service struct {
	store  Store
	locks  keyLock
	logger *slog.Logger
}

// New creates a memory table service.
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "memory"),
	}
}

// Save upserts a fact by (owner, key) and returns the fact's id.
//
// An existing fact gets its value and updatedAt patched in place and
// keeps its id; memoryType is left unchanged on update. A new key
// inserts a fresh fact with createdAt == updatedAt. The read-then-write
// is serialized per (owner, key) so concurrent saves of the same key
// cannot race into two facts.
func (s *Service) Save(ctx context.Context, caller *auth.Identity, key, value, memoryType string) (string, error) {
	if caller == nil {
		return "", auth.ErrUnauthorized
	}
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	if !ValidType(memoryType) {
		return "", fmt.Errorf("invalid memory type %q", memoryType)
	}

	unlock := s.locks.lock(caller.Subject + "\x00" + key)
	defer unlock()

	docs, err := s.store.QueryByIndex(ctx, docstore.Query{
		Collection: Collection.Name,
		Index:      "by_user",
		Equals:     map[string]any{"ownerId": caller.Subject},
		Filter:     map[string]any{"key": key},
		Limit:      1,
	})
	if err != nil {
		return "", fmt.Errorf("looking up memory: %w", err)
	}

	now := time.Now()
	if len(docs) > 0 {
		id := docs[0].ID
		err := s.store.Patch(ctx, Collection.Name, id, map[string]any{
			"value":     value,
			"updatedAt": now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return "", fmt.Errorf("updating memory: %w", err)
		}
		s.logger.Debug("updated memory", "id", id, "owner", caller.Subject, "key", key)
		return id, nil
	}

	fact := Fact{
		ID:         uuid.New().String(),
		OwnerID:    caller.Subject,
		Key:        key,
		Value:      value,
		MemoryType: memoryType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	body, err := json.Marshal(&fact)
	if err != nil {
		return "", fmt.Errorf("marshaling memory: %w", err)
	}

	id, err := s.store.Insert(ctx, Collection.Name, &docstore.Document{
		ID:        fact.ID,
		CreatedAt: fact.CreatedAt,
		Body:      body,
	})
	if err != nil {
		return "", fmt.Errorf("saving memory: %w", err)
	}

	s.logger.Debug("created memory", "id", id, "owner", caller.Subject, "key", key)
	return id, nil
}

// List returns the caller's facts newest-first. The limit is clamped to
// [1, MaxListLimit]; callers that want the default pass DefaultListLimit.
// Anonymous callers get an empty slice.
func (s *Service) List(ctx context.Context, caller *auth.Identity, limit int) ([]*Fact, error) {
	if caller == nil {
		return []*Fact{}, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	docs, err := s.store.QueryByIndex(ctx, docstore.Query{
		Collection: Collection.Name,
		Index:      "by_user_created",
		Equals:     map[string]any{"ownerId": caller.Subject},
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	facts := make([]*Fact, 0, len(docs))
	for _, d := range docs {
		f, err := factFromDoc(d)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// Delete removes one of the caller's facts by id. Deletion by id has no
// owner-scoped index shortcut, so ownership is checked by reading the
// full record. Missing and foreign records both yield ErrNotFound.
func (s *Service) Delete(ctx context.Context, caller *auth.Identity, id string) error {
	if caller == nil {
		return auth.ErrUnauthorized
	}

	doc, err := s.store.Get(ctx, Collection.Name, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching memory: %w", err)
	}

	fact, err := factFromDoc(doc)
	if err != nil {
		return err
	}
	if fact.OwnerID != caller.Subject {
		return ErrNotFound
	}

	if err := s.store.Delete(ctx, Collection.Name, id); err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}

	s.logger.Debug("deleted memory", "id", id, "owner", caller.Subject)
	return nil
}

func factFromDoc(d *docstore.Document) (*Fact, error) {
	var f Fact
	if err := json.Unmarshal(d.Body, &f); err != nil {
		return nil, fmt.Errorf("decoding memory %s: %w", d.ID, err)
	}
	f.ID = d.ID
	f.CreatedAt = d.CreatedAt
	return &f, nil
}
