// ABOUTME: ResourceCatalog service for role-scoped career resources
// ABOUTME: Read-mostly catalog filtered by role and optional type

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careeros/compass/internal/docstore"
)

// Resource types
const (
	TypeSimulator    = "simulator"
	TypeLocalExpert  = "local_expert"
	TypeOnlineExpert = "online_expert"
	TypeArticle      = "article"
	TypeBlog         = "blog"
	TypeVideo        = "video"
	TypeTryOnOwn     = "try_on_own"
)

var validTypes = map[string]bool{
	TypeSimulator:    true,
	TypeLocalExpert:  true,
	TypeOnlineExpert: true,
	TypeArticle:      true,
	TypeBlog:         true,
	TypeVideo:        true,
	TypeTryOnOwn:     true,
}

// ValidType reports whether t is a known resource type.
func ValidType(t string) bool {
	return validTypes[t]
}

// Collection declares the resources collection and its compound index.
var Collection = docstore.Collection{
	Name: "resources",
	Indexes: []docstore.Index{
		{Name: "by_role_type", Fields: []string{"role", "type"}},
	},
}

// Resource is one catalog entry. Resources have no owner: the catalog is
// globally readable by role/type filter. Write-once.
type Resource struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Content      string          `json:"content"`
	ExternalLink string          `json:"externalLink,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines what the catalog needs from the document store.
type Store interface {
	Insert(ctx context.Context, collection string, doc *docstore.Document) (string, error)
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	QueryByIndex(ctx context.Context, q docstore.Query) ([]*docstore.Document, error)
}

// Service is the resource catalog.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New creates a catalog service.
func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "catalog"),
	}
}

// Resources returns resources for a role, optionally narrowed to one
// type. With a type the compound index serves the query; without one
// the role filter is a linear scan, which is fine for a bounded catalog.
// No authorization: the catalog is globally readable.
func (s *Service) Resources(ctx context.Context, role, resourceType string) ([]*Resource, error) {
	q := docstore.Query{
		Collection: Collection.Name,
		Descending: true,
	}
	if resourceType != "" {
		q.Index = "by_role_type"
		q.Equals = map[string]any{"role": role, "type": resourceType}
	} else {
		q.Filter = map[string]any{"role": role}
	}

	docs, err := s.store.QueryByIndex(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	resources := make([]*Resource, 0, len(docs))
	for _, d := range docs {
		r, err := resourceFromDoc(d)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, nil
}

// CreateRequest carries the fields of a new resource.
type CreateRequest struct {
	Role         string
	Type         string
	Title        string
	Description  string
	Content      string
	ExternalLink string
	Metadata     json.RawMessage
}

// Create inserts a resource and returns the full created record,
// re-read from the store.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	if req.Role == "" {
		return nil, fmt.Errorf("role is required")
	}
	if !validTypes[req.Type] {
		return nil, fmt.Errorf("invalid resource type %q", req.Type)
	}

	res := Resource{
		ID:           uuid.New().String(),
		Role:         req.Role,
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		Content:      req.Content,
		ExternalLink: req.ExternalLink,
		Metadata:     req.Metadata,
		CreatedAt:    time.Now(),
	}

	body, err := json.Marshal(&res)
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}

	id, err := s.store.Insert(ctx, Collection.Name, &docstore.Document{
		ID:        res.ID,
		CreatedAt: res.CreatedAt,
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	doc, err := s.store.Get(ctx, Collection.Name, id)
	if err != nil {
		return nil, fmt.Errorf("re-reading resource: %w", err)
	}

	s.logger.Debug("created resource", "id", id, "role", req.Role, "type", req.Type)
	return resourceFromDoc(doc)
}

func resourceFromDoc(d *docstore.Document) (*Resource, error) {
	var r Resource
	if err := json.Unmarshal(d.Body, &r); err != nil {
		return nil, fmt.Errorf("decoding resource %s: %w", d.ID, err)
	}
	r.ID = d.ID
	r.CreatedAt = d.CreatedAt
	return &r, nil
}
