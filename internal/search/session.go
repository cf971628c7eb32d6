// Package search holds the search-pagination state machine that sits between
// front ends and the catalog client.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/drallgood/bookfinder/internal/api/openlibrary"
	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
)

// ErrSearchFailed is the user-facing message for any failed fetch
const ErrSearchFailed = "Failed to search books. Please try again."

// DefaultPageSize is used when Options.PageSize is not set
const DefaultPageSize = openlibrary.DefaultPageSize

// State is the derived phase of a session
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the session state
type Snapshot struct {
	Query       string
	Results     []models.Book
	Offset      int
	HasMore     bool
	Loading     bool
	Err         string
	HasSearched bool
	State       State
}

// Options configures a Session
type Options struct {
	PageSize int
	// Timeout bounds each fetch; zero means no limit beyond the caller's ctx
	Timeout time.Duration
	Logger  *logger.Logger
}

// Session owns the query, the accumulated results and the pagination cursor.
// Intents may be called from any goroutine. Each fetch is tagged with a
// generation and only the latest generation may apply its result.
type Session struct {
	searcher openlibrary.Searcher
	pageSize int
	timeout  time.Duration
	logger   *logger.Logger

	mu          sync.Mutex
	query       string
	results     []models.Book
	offset      int
	hasMore     bool
	loading     bool
	errMsg      string
	hasSearched bool
	generation  uint64
	cancel      context.CancelFunc

	// notifyMu serializes subscriber callbacks so they observe transitions in order
	notifyMu    sync.Mutex
	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewSession creates an idle session backed by searcher
func NewSession(searcher openlibrary.Searcher, opts Options) *Session {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	log := opts.Logger
	if log == nil {
		log = logger.ForComponent("search")
	}
	return &Session{
		searcher:    searcher,
		pageSize:    pageSize,
		timeout:     opts.Timeout,
		logger:      log,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// PageSize returns the page size this session paginates by
func (s *Session) PageSize() int {
	return s.pageSize
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	results := make([]models.Book, len(s.results))
	copy(results, s.results)
	return Snapshot{
		Query:       s.query,
		Results:     results,
		Offset:      s.offset,
		HasMore:     s.hasMore,
		Loading:     s.loading,
		Err:         s.errMsg,
		HasSearched: s.hasSearched,
		State:       s.stateLocked(),
	}
}

func (s *Session) stateLocked() State {
	switch {
	case s.loading:
		return StateLoading
	case s.errMsg != "":
		return StateError
	case s.hasSearched:
		return StateLoaded
	default:
		return StateIdle
	}
}

// Subscribe registers fn to receive a snapshot after every transition.
// fn must not call intents on the session synchronously.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	if len(subs) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

// Search starts a new search. A blank query is ignored. A search is always
// accepted, even while another fetch is in flight; the older fetch is
// cancelled and its result discarded. Search blocks until its own fetch
// completes or is superseded.
func (s *Session) Search(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.query = query
	s.offset = 0
	s.loading = true
	s.errMsg = ""
	fetchCtx, cancel := s.fetchContext(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.notify()

	log := logger.Ctx(ctx, s.logger)
	log.Debug("Starting search", map[string]interface{}{
		"query":      query,
		"generation": gen,
	})

	books, err := s.searcher.Search(fetchCtx, query, 0, s.pageSize)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug("Discarding stale search response", map[string]interface{}{
			"query":      query,
			"generation": gen,
		})
		return
	}
	s.loading = false
	s.cancel = nil
	if err != nil {
		s.errMsg = ErrSearchFailed
		// The kept results belong to the previous query, so they must not
		// be extended with pages of this one.
		s.hasMore = false
		s.mu.Unlock()
		log.Warn("Search failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		s.notify()
		return
	}
	s.results = books
	s.hasSearched = true
	s.hasMore = len(books) == s.pageSize
	s.offset = s.pageSize
	s.mu.Unlock()

	log.Debug("Search completed", map[string]interface{}{
		"query":    query,
		"returned": len(books),
	})
	s.notify()
}

// LoadMore fetches the next page for the current query and appends it.
// It is a no-op without a query, when no more pages exist, or while a fetch
// is in flight.
func (s *Session) LoadMore(ctx context.Context) {
	s.mu.Lock()
	if s.query == "" || !s.hasMore || s.loading {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	query := s.query
	offset := s.offset
	s.loading = true
	s.errMsg = ""
	fetchCtx, cancel := s.fetchContext(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.notify()

	log := logger.Ctx(ctx, s.logger)
	books, err := s.searcher.Search(fetchCtx, query, offset, s.pageSize)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug("Discarding stale page", map[string]interface{}{
			"query":  query,
			"offset": offset,
		})
		return
	}
	s.loading = false
	s.cancel = nil
	if err != nil {
		s.errMsg = ErrSearchFailed
		s.mu.Unlock()
		log.Warn("Loading more results failed", map[string]interface{}{
			"query":  query,
			"offset": offset,
			"error":  err.Error(),
		})
		s.notify()
		return
	}
	s.results = append(s.results, books...)
	s.offset += s.pageSize
	s.hasMore = len(books) == s.pageSize
	s.mu.Unlock()

	log.Debug("Loaded more results", map[string]interface{}{
		"query":    query,
		"offset":   offset,
		"returned": len(books),
	})
	s.notify()
}

// fetchContext derives the per-fetch context. Caller holds s.mu.
func (s *Session) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
