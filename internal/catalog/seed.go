// ABOUTME: TOML seed file loading for the resource catalog
// ABOUTME: Idempotent per (role, type, title) so re-seeding is safe

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// seedFile is the TOML shape of a catalog seed.
type seedFile struct {
	Resources []seedResource `toml:"resource"`
}

type seedResource struct {
	Role         string         `toml:"role"`
	Type         string         `toml:"type"`
	Title        string         `toml:"title"`
	Description  string         `toml:"description"`
	Content      string         `toml:"content"`
	ExternalLink string         `toml:"external_link"`
	Metadata     map[string]any `toml:"metadata"`
}

// Seed loads a TOML seed file and inserts any resource not already
// present, keyed by (role, type, title). Returns the number inserted.
func (s *Service) Seed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	var seed seedFile
	if _, err := toml.Decode(string(data), &seed); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	inserted := 0
	for _, sr := range seed.Resources {
		existing, err := s.Resources(ctx, sr.Role, sr.Type)
		if err != nil {
			return inserted, err
		}
		if containsTitle(existing, sr.Title) {
			continue
		}

		var metadata json.RawMessage
		if len(sr.Metadata) > 0 {
			metadata, err = json.Marshal(sr.Metadata)
			if err != nil {
				return inserted, fmt.Errorf("marshaling seed metadata for %q: %w", sr.Title, err)
			}
		}

		if _, err := s.Create(ctx, CreateRequest{
			Role:         sr.Role,
			Type:         sr.Type,
			Title:        sr.Title,
			Description:  sr.Description,
			Content:      sr.Content,
			ExternalLink: sr.ExternalLink,
			Metadata:     metadata,
		}); err != nil {
			return inserted, fmt.Errorf("seeding resource %q: %w", sr.Title, err)
		}
		inserted++
	}

	s.logger.Info("seeded resource catalog", "path", path, "inserted", inserted, "total", len(seed.Resources))
	return inserted, nil
}

func containsTitle(resources []*Resource, title string) bool {
	for _, r := range resources {
		if r.Title == title {
			return true
		}
	}
	return false
}
