// Package favorites keeps the user's saved books, deduplicated by catalog id
// and persisted as a single list on every change.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/storage"
)

// Set is an insertion-ordered set of books keyed by ID
type Set struct {
	store  storage.Store
	logger *logger.Logger

	// persistMu orders writes so the stored list always matches the
	// latest mutation
	persistMu sync.Mutex
	mu        sync.RWMutex
	order     []string
	books     map[string]models.Book
}

// New creates an empty set persisted to store
func New(store storage.Store, log *logger.Logger) *Set {
	if log == nil {
		log = logger.ForComponent("favorites")
	}
	return &Set{
		store:  store,
		logger: log,
		books:  make(map[string]models.Book),
	}
}

// Load replaces the in-memory set with the persisted list. A missing or
// corrupt record leaves the set empty and is only logged.
func (s *Set) Load(ctx context.Context) {
	var stored []models.Book
	err := storage.LoadJSON(ctx, s.store, storage.KeyFavorites, &stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.books = make(map[string]models.Book)

	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Discarding unreadable favorites", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	for _, b := range stored {
		if b.ID == "" {
			continue
		}
		if _, dup := s.books[b.ID]; dup {
			continue
		}
		s.order = append(s.order, b.ID)
		s.books[b.ID] = b
	}

	s.logger.Debug("Favorites loaded", map[string]interface{}{
		"count": len(s.order),
	})
}

// Toggle removes book if a book with its ID is saved, otherwise appends it.
// The whole list is persisted either way. A persist failure is returned but
// the in-memory change is kept.
func (s *Set) Toggle(ctx context.Context, book models.Book) (added bool, err error) {
	if book.ID == "" {
		return false, fmt.Errorf("favorites: book has no id")
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if _, ok := s.books[book.ID]; ok {
		delete(s.books, book.ID)
		for i, id := range s.order {
			if id == book.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		s.books[book.ID] = book
		s.order = append(s.order, book.ID)
		added = true
	}
	list := s.listLocked()
	s.mu.Unlock()

	if err := storage.SaveJSON(ctx, s.store, storage.KeyFavorites, list); err != nil {
		s.logger.Error("Failed to persist favorites", map[string]interface{}{
			"book_id": book.ID,
			"error":   err.Error(),
		})
		return added, fmt.Errorf("failed to persist favorites: %w", err)
	}

	s.logger.Debug("Favorite toggled", map[string]interface{}{
		"book_id": book.ID,
		"added":   added,
		"count":   len(list),
	})
	return added, nil
}

// Contains reports whether a book with the same ID is saved
func (s *Set) Contains(book models.Book) bool {
	return s.ContainsID(book.ID)
}

// ContainsID reports whether id is saved
func (s *Set) ContainsID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.books[id]
	return ok
}

// Get returns the saved book with id
func (s *Set) Get(id string) (models.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	return b, ok
}

// Len returns the number of saved books
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// List returns the saved books in the order they were added
func (s *Set) List() []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *Set) listLocked() []models.Book {
	list := make([]models.Book, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.books[id])
	}
	return list
}
