package openlibrary

import (
	"context"

	"github.com/drallgood/bookfinder/internal/models"
)

// Searcher is the catalog surface the search session depends on
type Searcher interface {
	// Search returns one page of normalized results for a title query
	Search(ctx context.Context, query string, offset, pageSize int) ([]models.Book, error)
}

var _ Searcher = (*Client)(nil)
