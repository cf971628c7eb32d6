// Package openlibrary is the client for the Open Library title search.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
)

const (
	// DefaultBaseURL is the public catalog host
	DefaultBaseURL = models.DefaultCatalogURL
	// DefaultPageSize is the page size the result list paginates by
	DefaultPageSize = 20
	// DefaultTimeout bounds a single search request
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent identifies the client to Open Library
	DefaultUserAgent = "bookfinder/dev (+https://openlibrary.org/developers/api)"
	// DefaultRateLimit is requests per second; zero disables limiting
	DefaultRateLimit = 5.0

	searchPath = "/search.json"
)

// ClientConfig holds the configuration for the catalog client
type ClientConfig struct {
	BaseURL   string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
	RateLimit float64
	// Transport overrides the base HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// DefaultClientConfig returns the default configuration for the client
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   DefaultBaseURL,
		PageSize:  DefaultPageSize,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		RateLimit: DefaultRateLimit,
	}
}

// Client searches the Open Library catalog
type Client struct {
	baseURL    string
	pageSize   int
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient creates a client with the default configuration
func NewClient(log *logger.Logger) *Client {
	return NewClientWithConfig(DefaultClientConfig(), log)
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *ClientConfig, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	if log == nil {
		log = logger.ForComponent("openlibrary_client")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	// rate.Inf never blocks
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	log.Debug("Creating catalog client", map[string]interface{}{
		"base_url":   baseURL,
		"page_size":  pageSize,
		"timeout":    cfg.Timeout.String(),
		"rate_limit": cfg.RateLimit,
	})

	return &Client{
		baseURL:   baseURL,
		pageSize:  pageSize,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: logger.NewTransport(base, log),
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// PageSize is the default page size used when Search is given none
func (c *Client) PageSize() int {
	return c.pageSize
}

// searchResponse matches search.json
type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    *int     `json:"first_publish_year"`
	ISBN                []string `json:"isbn"`
	CoverI              *int     `json:"cover_i"`
	Subject             []string `json:"subject"`
	Publisher           []string `json:"publisher"`
	Language            []string `json:"language"`
	NumberOfPagesMedian *int     `json:"number_of_pages_median"`
}

// Search returns one page of results for a title query. A blank query
// returns no results and makes no request. pageSize <= 0 uses the client
// default. Every failure is a *FetchError.
func (c *Client) Search(ctx context.Context, query string, offset, pageSize int) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("title", query)
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(offset))
	u := c.baseURL + searchPath + "?" + params.Encode()

	log := logger.Ctx(ctx, c.logger)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: KindTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		log.Warn("Catalog returned an error status", map[string]interface{}{
			"status_code": resp.StatusCode,
			"query":       query,
			"offset":      offset,
		})
		return nil, &FetchError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	var res searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	books := make([]models.Book, 0, len(res.Docs))
	for _, doc := range res.Docs {
		books = append(books, normalize(doc))
	}

	log.Debug("Catalog search completed", map[string]interface{}{
		"query":     query,
		"offset":    offset,
		"returned":  len(books),
		"num_found": res.NumFound,
	})

	return books, nil
}

// normalize maps a raw search document to a Book, filling placeholders for
// missing fields and truncating the long lists.
func normalize(doc searchDoc) models.Book {
	b := models.Book{
		ID:               doc.Key,
		Title:            doc.Title,
		Authors:          doc.AuthorName,
		FirstPublishYear: doc.FirstPublishYear,
		CoverID:          doc.CoverI,
		Subjects:         truncate(doc.Subject, models.MaxSubjects),
		Publishers:       truncate(doc.Publisher, models.MaxPublishers),
		Languages:        doc.Language,
		PageCountMedian:  doc.NumberOfPagesMedian,
	}
	if b.Title == "" {
		b.Title = models.UnknownTitle
	}
	if len(b.Authors) == 0 {
		b.Authors = []string{models.UnknownAuthor}
	}
	if len(doc.ISBN) > 0 {
		b.ISBN = doc.ISBN[0]
	}
	if len(b.Languages) == 0 {
		b.Languages = []string{models.DefaultLanguage}
	}
	return b
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
