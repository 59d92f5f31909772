// Package catalog is the boundary to upstream media catalogs. The
// engine never interprets catalog data; it only carries item ids and
// opaque snapshots. Implementations wrap a concrete upstream API and
// are independently testable.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/reelmates/match-server-go/internal/model"
)

// Item is one catalog entry as the UI layer consumes it.
type Item struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Year     int             `json:"year,omitempty"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Genres   []string        `json:"genres,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Provider fetches catalog content using resolved credentials. Which
// credentials apply (the user's own or a lending host's) is decided by
// the credential delegate before the call.
type Provider interface {
	Search(ctx context.Context, creds model.Credentials, filters model.SessionFilters) ([]Item, error)
	Genres(ctx context.Context, creds model.Credentials) ([]string, error)
	ImageURL(ctx context.Context, creds model.Credentials, itemID string) (string, error)
}
