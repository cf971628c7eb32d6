package models

import (
	"strconv"
	"strings"
)

// Placeholders used when the catalog omits a field
const (
	UnknownTitle    = "Unknown Title"
	UnknownAuthor   = "Unknown Author"
	DefaultLanguage = "eng"
)

// Limits applied when normalizing catalog records
const (
	MaxSubjects   = 5
	MaxPublishers = 3
)

// Base URLs for links derived from a Book
const (
	DefaultCatalogURL = "https://openlibrary.org"
	DefaultCoversURL  = "https://covers.openlibrary.org"
)

// CoverSize selects the rendition of a cover image
type CoverSize string

const (
	// CoverMedium is the card thumbnail
	CoverMedium CoverSize = "M"
	// CoverLarge is used by the detail view
	CoverLarge CoverSize = "L"
)

// Book is a catalog record after normalization.
// ID is the only identity: two books with the same ID are the same book.
// JSON names match the persisted favorites format.
type Book struct {
	ID               string   `json:"key"`
	Title            string   `json:"title"`
	Authors          []string `json:"author_name"`
	FirstPublishYear *int     `json:"first_publish_year,omitempty"`
	ISBN             string   `json:"isbn,omitempty"`
	CoverID          *int     `json:"cover_i,omitempty"`
	Subjects         []string `json:"subject"`
	Publishers       []string `json:"publisher"`
	Languages        []string `json:"language"`
	PageCountMedian  *int     `json:"number_of_pages_median,omitempty"`
}

// SameAs reports whether b and other refer to the same catalog entry
func (b Book) SameAs(other Book) bool {
	return b.ID == other.ID
}

// AuthorLine joins the author names for display
func (b Book) AuthorLine() string {
	if len(b.Authors) == 0 {
		return UnknownAuthor
	}
	return strings.Join(b.Authors, ", ")
}

// CoverURL returns the cover image URL at the given size using the default
// covers host. ok is false when the book has no cover, and callers should
// show a placeholder instead.
func (b Book) CoverURL(size CoverSize) (url string, ok bool) {
	return b.CoverURLFrom(DefaultCoversURL, size)
}

// CoverURLFrom is CoverURL against a specific covers host
func (b Book) CoverURLFrom(coversBase string, size CoverSize) (string, bool) {
	if b.CoverID == nil {
		return "", false
	}
	if size != CoverLarge {
		size = CoverMedium
	}
	return strings.TrimSuffix(coversBase, "/") + "/b/id/" + strconv.Itoa(*b.CoverID) + "-" + string(size) + ".jpg", true
}

// Permalink returns the catalog page for the book
func (b Book) Permalink() string {
	return b.PermalinkFrom(DefaultCatalogURL)
}

// PermalinkFrom is Permalink against a specific catalog host
func (b Book) PermalinkFrom(catalogBase string) string {
	return strings.TrimSuffix(catalogBase, "/") + b.ID
}
