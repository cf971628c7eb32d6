package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/drallgood/bookfinder/internal/api/openlibrary"
	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, offset, pageSize int) ([]models.Book, error) {
	args := m.Called(ctx, query, offset, pageSize)
	var books []models.Book
	if b := args.Get(0); b != nil {
		books = b.([]models.Book)
	}
	return books, args.Error(1)
}

// blockingSearcher hands each call to the test and waits for its reply.
// It ignores ctx so the generation guard is exercised on its own.
type blockingSearcher struct {
	calls chan *pendingCall
}

type pendingCall struct {
	query  string
	offset int
	reply  chan reply
}

type reply struct {
	books []models.Book
	err   error
}

func newBlockingSearcher() *blockingSearcher {
	return &blockingSearcher{calls: make(chan *pendingCall, 8)}
}

func (b *blockingSearcher) Search(_ context.Context, query string, offset, _ int) ([]models.Book, error) {
	c := &pendingCall{query: query, offset: offset, reply: make(chan reply, 1)}
	b.calls <- c
	r := <-c.reply
	return r.books, r.err
}

func (b *blockingSearcher) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-b.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func makeBooks(prefix string, n int) []models.Book {
	books := make([]models.Book, n)
	for i := range books {
		books[i] = models.Book{ID: fmt.Sprintf("/works/%s%d", prefix, i), Title: fmt.Sprintf("%s %d", prefix, i)}
	}
	return books
}

func newTestSession(s openlibrary.Searcher) *Session {
	return NewSession(s, Options{PageSize: 20, Logger: logger.Nop()})
}

func TestSession_InitialState(t *testing.T) {
	s := newTestSession(&mockSearcher{})
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Results)
	assert.False(t, snap.HasSearched)
	assert.Equal(t, 20, s.PageSize())
}

func TestSession_SearchThenLoadMore(t *testing.T) {
	ctx := context.Background()
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "Dune", 0, 20).Return(makeBooks("a", 20), nil).Once()
	m.On("Search", mock.Anything, "Dune", 20, 20).Return(makeBooks("b", 12), nil).Once()

	s := newTestSession(m)

	s.Search(ctx, "Dune")
	snap := s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Len(t, snap.Results, 20)
	assert.True(t, snap.HasMore)
	assert.Equal(t, 20, snap.Offset)
	assert.True(t, snap.HasSearched)

	s.LoadMore(ctx)
	snap = s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Len(t, snap.Results, 32)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 40, snap.Offset)
	assert.Equal(t, "/works/a0", snap.Results[0].ID)
	assert.Equal(t, "/works/b11", snap.Results[31].ID)

	// Pagination has ended
	s.LoadMore(ctx)
	m.AssertExpectations(t)
}

func TestSession_EmptyQueryIsIgnored(t *testing.T) {
	m := &mockSearcher{}
	s := newTestSession(m)

	before := s.Snapshot()
	for _, q := range []string{"", "   ", "\t"} {
		s.Search(context.Background(), q)
	}
	assert.Equal(t, before, s.Snapshot())
	m.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_LoadMoreWithoutQueryIsNoop(t *testing.T) {
	m := &mockSearcher{}
	s := newTestSession(m)

	s.LoadMore(context.Background())
	assert.Equal(t, StateIdle, s.Snapshot().State)
	m.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_QueryIsTrimmed(t *testing.T) {
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 3), nil).Once()

	s := newTestSession(m)
	s.Search(context.Background(), "  dune  ")

	assert.Equal(t, "dune", s.Snapshot().Query)
	m.AssertExpectations(t)
}

func TestSession_NewSearchReplacesResults(t *testing.T) {
	ctx := context.Background()
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 20), nil).Once()
	m.On("Search", mock.Anything, "dune", 20, 20).Return(makeBooks("b", 20), nil).Once()
	m.On("Search", mock.Anything, "emma", 0, 20).Return(makeBooks("c", 5), nil).Once()

	s := newTestSession(m)
	s.Search(ctx, "dune")
	s.LoadMore(ctx)
	require.Len(t, s.Snapshot().Results, 40)

	s.Search(ctx, "emma")
	snap := s.Snapshot()
	assert.Len(t, snap.Results, 5)
	assert.Equal(t, "/works/c0", snap.Results[0].ID)
	assert.Equal(t, 20, snap.Offset)
	assert.False(t, snap.HasMore)
	m.AssertExpectations(t)
}

func TestSession_FailedLoadMoreKeepsResults(t *testing.T) {
	ctx := context.Background()
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 20), nil).Once()
	m.On("Search", mock.Anything, "dune", 20, 20).Return(nil, &openlibrary.FetchError{Kind: openlibrary.KindStatus, StatusCode: 500}).Once()
	m.On("Search", mock.Anything, "dune", 20, 20).Return(makeBooks("b", 20), nil).Once()

	s := newTestSession(m)
	s.Search(ctx, "dune")
	s.LoadMore(ctx)

	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, ErrSearchFailed, snap.Err)
	assert.Len(t, snap.Results, 20)
	assert.Equal(t, 20, snap.Offset)
	assert.True(t, snap.HasMore)

	// Re-issuing the intent retries the same page
	s.LoadMore(ctx)
	snap = s.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Empty(t, snap.Err)
	assert.Len(t, snap.Results, 40)
	m.AssertExpectations(t)
}

func TestSession_FailedSearchKeepsPreviousResults(t *testing.T) {
	ctx := context.Background()
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 20), nil).Once()
	m.On("Search", mock.Anything, "emma", 0, 20).Return(nil, errors.New("connection refused")).Once()

	s := newTestSession(m)
	s.Search(ctx, "dune")
	s.Search(ctx, "emma")

	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, ErrSearchFailed, snap.Err)
	assert.Len(t, snap.Results, 20)
	assert.Equal(t, "/works/a0", snap.Results[0].ID)
	assert.False(t, snap.HasMore)

	s.LoadMore(ctx)
	m.AssertExpectations(t)
}

func TestSession_StaleSearchIsDiscarded(t *testing.T) {
	ctx := context.Background()
	b := newBlockingSearcher()
	s := newTestSession(b)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Search(ctx, "first")
	}()
	first := b.next(t)

	go func() {
		defer wg.Done()
		s.Search(ctx, "second")
	}()
	second := b.next(t)

	second.reply <- reply{books: makeBooks("second", 3)}
	require.Eventually(t, func() bool {
		return s.Snapshot().State == StateLoaded
	}, 2*time.Second, 5*time.Millisecond)

	// The older response arrives late and must not be applied
	first.reply <- reply{books: makeBooks("first", 20)}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, "second", snap.Query)
	assert.Len(t, snap.Results, 3)
	assert.Equal(t, "/works/second0", snap.Results[0].ID)
	assert.False(t, snap.HasMore)
}

func TestSession_LoadMoreDroppedWhileLoading(t *testing.T) {
	ctx := context.Background()
	b := newBlockingSearcher()
	s := newTestSession(b)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Search(ctx, "dune")
	}()
	call := b.next(t)
	assert.True(t, s.Snapshot().Loading)

	s.LoadMore(ctx)
	select {
	case extra := <-b.calls:
		t.Fatalf("unexpected fetch at offset %d", extra.offset)
	default:
	}

	call.reply <- reply{books: makeBooks("a", 20)}
	<-done

	go func() {
		s.LoadMore(ctx)
	}()
	more := b.next(t)
	assert.Equal(t, 20, more.offset)

	s.LoadMore(ctx)
	select {
	case extra := <-b.calls:
		t.Fatalf("unexpected fetch at offset %d", extra.offset)
	default:
	}

	more.reply <- reply{books: makeBooks("b", 20)}
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 40
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_SearchSupersedesLoadMore(t *testing.T) {
	ctx := context.Background()
	b := newBlockingSearcher()
	s := newTestSession(b)

	go s.Search(ctx, "dune")
	b.next(t).reply <- reply{books: makeBooks("a", 20)}
	require.Eventually(t, func() bool { return s.Snapshot().State == StateLoaded }, 2*time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.LoadMore(ctx)
	}()
	page := b.next(t)

	go func() {
		defer wg.Done()
		s.Search(ctx, "emma")
	}()
	fresh := b.next(t)
	assert.Equal(t, "emma", fresh.query)

	page.reply <- reply{books: makeBooks("stale", 20)}
	fresh.reply <- reply{books: makeBooks("emma", 2)}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, "emma", snap.Query)
	assert.Len(t, snap.Results, 2)
	assert.Equal(t, StateLoaded, snap.State)
}

type ctxSearcher struct{}

func (ctxSearcher) Search(ctx context.Context, _ string, _, _ int) ([]models.Book, error) {
	<-ctx.Done()
	return nil, &openlibrary.FetchError{Kind: openlibrary.KindTransport, Err: ctx.Err()}
}

func TestSession_FetchTimeout(t *testing.T) {
	s := NewSession(ctxSearcher{}, Options{PageSize: 20, Timeout: 20 * time.Millisecond, Logger: logger.Nop()})

	s.Search(context.Background(), "dune")

	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, ErrSearchFailed, snap.Err)
	assert.False(t, snap.Loading)
}

func TestSession_Subscribe(t *testing.T) {
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 5), nil)

	s := newTestSession(m)

	var mu sync.Mutex
	var states []State
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	s.Search(context.Background(), "dune")

	mu.Lock()
	assert.Equal(t, []State{StateLoading, StateLoaded}, states)
	mu.Unlock()

	cancel()
	cancel()
	s.Search(context.Background(), "dune")

	mu.Lock()
	assert.Len(t, states, 2, "no notifications after cancel")
	mu.Unlock()
}

func TestSnapshot_IsACopy(t *testing.T) {
	m := &mockSearcher{}
	m.On("Search", mock.Anything, "dune", 0, 20).Return(makeBooks("a", 2), nil)

	s := newTestSession(m)
	s.Search(context.Background(), "dune")

	snap := s.Snapshot()
	snap.Results[0].Title = "changed"
	assert.NotEqual(t, "changed", s.Snapshot().Results[0].Title)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", State(42).String())
}
