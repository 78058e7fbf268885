// ABOUTME: MessageLedger service for the user-scoped chat message log
// ABOUTME: Newest-first retrieval and bounded-batch retention purge

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/docstore"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is a known message role.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

const (
	// batchSize bounds how many messages a single purge round fetches.
	// Peak memory during ClearHistory is one batch regardless of how
	// many messages the user has.
	batchSize = 100

	// DefaultListLimit applies when a listing asks for no particular limit.
	DefaultListLimit = 50
)

// Collection declares the chat message collection and its indexes.
var Collection = docstore.Collection{
	Name: "chat_messages",
	Indexes: []docstore.Index{
		{Name: "by_user", Fields: []string{"ownerId"}},
		{Name: "by_user_created", Fields: []string{"ownerId", docstore.CreatedAtField}},
	},
}

// Message is a single chat message. Messages are immutable once written;
// the only deletion path is the retention purge.
type Message struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"ownerId"`
	Role               string    `json:"role"`
	Content            string    `json:"content"`
	BookmarkReferences []string  `json:"bookmarkReferences,omitempty"`
	ProjectID          string    `json:"projectId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Store defines what the ledger needs from the document store.
type Store interface {
	Insert(ctx context.Context, collection string, doc *docstore.Document) (string, error)
	Delete(ctx context.Context, collection, id string) error
	QueryByIndex(ctx context.Context, q docstore.Query) ([]*docstore.Document, error)
}

// Service is the message ledger.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New creates a ledger service.
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "ledger"),
	}
}

// SaveRequest carries the caller-supplied fields of a new message.
type SaveRequest struct {
	Role               string
	Content            string
	BookmarkReferences []string
	ProjectID          string
}

// SaveMessage appends a message for the caller and returns its id.
// Fails with auth.ErrUnauthorized for anonymous callers.
func (s *Service) SaveMessage(ctx context.Context, caller *auth.Identity, req SaveRequest) (string, error) {
	if caller == nil {
		return "", auth.ErrUnauthorized
	}
	if !ValidRole(req.Role) {
		return "", fmt.Errorf("invalid role %q", req.Role)
	}

	msg := Message{
		ID:                 uuid.New().String(),
		OwnerID:            caller.Subject,
		Role:               req.Role,
		Content:            req.Content,
		BookmarkReferences: req.BookmarkReferences,
		ProjectID:          req.ProjectID,
		CreatedAt:          time.Now(),
	}

	body, err := json.Marshal(&msg)
	if err != nil {
		return "", fmt.Errorf("marshaling message: %w", err)
	}

	id, err := s.store.Insert(ctx, Collection.Name, &docstore.Document{
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
		Body:      body,
	})
	if err != nil {
		return "", fmt.Errorf("saving message: %w", err)
	}

	s.logger.Debug("saved message", "id", id, "owner", caller.Subject, "role", req.Role)
	return id, nil
}

// ListRecent returns the caller's messages newest-first. A limit <= 0
// falls back to DefaultListLimit; larger limits are honored as-is.
// Anonymous callers get an empty slice, never an error.
func (s *Service) ListRecent(ctx context.Context, caller *auth.Identity, limit int) ([]*Message, error) {
	if caller == nil {
		return []*Message{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	docs, err := s.store.QueryByIndex(ctx, docstore.Query{
		Collection: Collection.Name,
		Index:      "by_user_created",
		Equals:     map[string]any{"ownerId": caller.Subject},
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	messages := make([]*Message, 0, len(docs))
	for _, d := range docs {
		m, err := messageFromDoc(d)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// ClearHistory deletes all of the caller's messages, optionally only
// those older than maxAgeDays. Deletion runs in rounds of at most
// batchSize: fetch one batch, delete each row, re-query. A short or
// empty batch means the matching set is exhausted. The loop is
// resumable — a crash mid-purge leaves the remaining rows for the next
// call — and a repeat call deletes nothing and reports zero.
func (s *Service) ClearHistory(ctx context.Context, caller *auth.Identity, maxAgeDays int) (int, error) {
	if caller == nil {
		return 0, auth.ErrUnauthorized
	}

	var cutoff time.Time
	if maxAgeDays > 0 {
		cutoff = time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	}

	deleted := 0
	for {
		docs, err := s.store.QueryByIndex(ctx, docstore.Query{
			Collection:    Collection.Name,
			Index:         "by_user",
			Equals:        map[string]any{"ownerId": caller.Subject},
			Limit:         batchSize,
			CreatedBefore: cutoff,
		})
		if err != nil {
			return deleted, fmt.Errorf("fetching purge batch: %w", err)
		}

		for _, d := range docs {
			if err := s.store.Delete(ctx, Collection.Name, d.ID); err != nil {
				return deleted, fmt.Errorf("deleting message %s: %w", d.ID, err)
			}
			deleted++
		}

		if len(docs) < batchSize {
			break
		}
	}

	s.logger.Info("cleared history", "owner", caller.Subject, "deleted", deleted, "max_age_days", maxAgeDays)
	return deleted, nil
}

// messageFromDoc decodes a stored document into a Message. The id and
// creation time columns are authoritative over whatever the body says.
func messageFromDoc(d *docstore.Document) (*Message, error) {
	var m Message
	if err := json.Unmarshal(d.Body, &m); err != nil {
		return nil, fmt.Errorf("decoding message %s: %w", d.ID, err)
	}
	m.ID = d.ID
	m.CreatedAt = d.CreatedAt
	return &m, nil
}
