// ABOUTME: ConversationArchive service for saved planning conversations
// ABOUTME: Write-once records, owner-scoped history, existence-hiding lookup

package archive

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

// Collection declares the planning conversation collection and its indexes.
var Collection = docstore.Collection{
	Name: "planning_conversations",
	Indexes: []docstore.Index{
		{Name: "by_user", Fields: []string{"ownerId"}},
		{Name: "by_user_created", Fields: []string{"ownerId", docstore.CreatedAtField}},
		{Name: "by_conversation_id", Fields: []string{"conversationId"}},
	},
}

// Conversation is a saved planning conversation. Records are write-once:
// no update or delete operation exists.
type Conversation struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"ownerId"`
	ConversationID   string          `json:"conversationId"`
	Title            string          `json:"title"`
	FullConversation string          `json:"fullConversation"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Store defines what the archive needs from the document store.
type Store interface {
	Insert(ctx context.Context, collection string, doc *docstore.Document) (string, error)
	QueryByIndex(ctx context.Context, q docstore.Query) ([]*docstore.Document, error)
}

// Service is the conversation archive.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New creates an archive service.
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "archive"),
	}
}

// SaveRequest carries the caller-supplied fields of a new conversation.
type SaveRequest struct {
	ConversationID   string
	Title            string
	FullConversation string
	Metadata         json.RawMessage
}

// Save stores a planning conversation for the caller and returns its id.
// ConversationID uniqueness is not enforced across users; the lookups
// apply uniqueness implicitly by returning the first match.
func (s *Service) Save(ctx context.Context, caller *auth.Identity, req SaveRequest) (string, error) {
	if caller == nil {
		return "", auth.ErrUnauthorized
	}
	if req.ConversationID == "" {
		return "", fmt.Errorf("conversationId is required")
	}

	conv := Conversation{
		ID:               uuid.New().String(),
		OwnerID:          caller.Subject,
		ConversationID:   req.ConversationID,
		Title:            req.Title,
		FullConversation: req.FullConversation,
		Metadata:         req.Metadata,
		CreatedAt:        time.Now(),
	}

	body, err := json.Marshal(&conv)
	if err != nil {
		return "", fmt.Errorf("marshaling conversation: %w", err)
	}

	id, err := s.store.Insert(ctx, Collection.Name, &docstore.Document{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		Body:      body,
	})
	if err != nil {
		return "", fmt.Errorf("saving conversation: %w", err)
	}

	s.logger.Debug("saved planning conversation", "id", id, "owner", caller.Subject, "conversation_id", req.ConversationID)
	return id, nil
}

// History returns all of the caller's conversations newest-first.
// Anonymous callers get an empty slice.
func (s *Service) History(ctx context.Context, caller *auth.Identity) ([]*Conversation, error) {
	if caller == nil {
		return []*Conversation{}, nil
	}

	docs, err := s.store.QueryByIndex(ctx, docstore.Query{
		Collection: Collection.Name,
		Index:      "by_user_created",
		Equals:     map[string]any{"ownerId": caller.Subject},
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	convs := make([]*Conversation, 0, len(docs))
	for _, d := range docs {
		c, err := conversationFromDoc(d)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

// GetByConversationID looks up a conversation by its external id, then
// post-filters on ownership. Returns (nil, nil) uniformly when the
// record is missing, owned by someone else, or the caller is anonymous,
// so non-owners learn nothing about existence.
func (s *Service) GetByConversationID(ctx context.Context, caller *auth.Identity, conversationID string) (*Conversation, error) {
	if caller == nil {
		return nil, nil
	}

	docs, err := s.store.QueryByIndex(ctx, docstore.Query{
		Collection: Collection.Name,
		Index:      "by_conversation_id",
		Equals:     map[string]any{"conversationId": conversationID},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	conv, err := conversationFromDoc(docs[0])
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != caller.Subject {
		return nil, nil
	}
	return conv, nil
}

func conversationFromDoc(d *docstore.Document) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(d.Body, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", d.ID, err)
	}
	c.ID = d.ID
	c.CreatedAt = d.CreatedAt
	return &c, nil
}
