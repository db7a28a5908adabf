// Package client holds the remote catalog boundary consumed by the engine.
//
// CatalogSource is the only network-facing contract: ListOptions feeds the
// option fetcher and Search feeds the sort/paginate engine. Implementations
// surface terminal failures as errors.NetworkError or errors.RateLimited after
// doing their own retries; callers never retry.
package client

import (
	"context"

	"github.com/devrev/catalogd/internal/model"
)

// CatalogSource is the remote catalog API
type CatalogSource interface {
	// ListOptions returns the selectable values of d under the given ancestors
	ListOptions(ctx context.Context, d model.Dimension, ancestors model.AncestorPath) ([]model.Option, error)

	// Search returns at most limit entries matching state, plus the true match count
	Search(ctx context.Context, state *model.FilterState, limit int) (*model.SearchResult, error)
}
