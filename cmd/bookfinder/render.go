package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/drallgood/bookfinder/internal/app"
	"github.com/drallgood/bookfinder/internal/favorites"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/search"
)

// renderResults prints books numbered from start+1, marking favorites
func renderResults(w io.Writer, books []models.Book, start int, favs *favorites.Set) {
	for i, b := range books {
		mark := " "
		if favs != nil && favs.Contains(b) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %3d. %s%s\n", mark, start+i+1, b.Title, yearSuffix(b))
		fmt.Fprintf(w, "        by %s\n", b.AuthorLine())
	}
}

func renderFooter(w io.Writer, snap search.Snapshot) {
	switch {
	case snap.HasSearched && len(snap.Results) == 0:
		fmt.Fprintf(w, "No books found for %q\n", snap.Query)
	case snap.HasMore:
		fmt.Fprintf(w, "%d results so far, more available\n", len(snap.Results))
	default:
		fmt.Fprintf(w, "%d results\n", len(snap.Results))
	}
}

func renderFavorites(w io.Writer, books []models.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No favorites yet")
		return
	}
	fmt.Fprintf(w, "Favorites (%d)\n", len(books))
	for i, b := range books {
		fmt.Fprintf(w, "%3d. %s%s  [%s]\n", i+1, b.Title, yearSuffix(b), b.ID)
	}
}

// renderBook prints the detail view of a book
func renderBook(w io.Writer, core *app.App, b models.Book) {
	fmt.Fprintln(w, b.Title)
	fmt.Fprintf(w, "  Authors:    %s\n", b.AuthorLine())
	if b.FirstPublishYear != nil {
		fmt.Fprintf(w, "  Published:  %d\n", *b.FirstPublishYear)
	}
	if b.ISBN != "" {
		fmt.Fprintf(w, "  ISBN:       %s\n", b.ISBN)
	}
	if b.PageCountMedian != nil {
		fmt.Fprintf(w, "  Pages:      %d\n", *b.PageCountMedian)
	}
	if len(b.Publishers) > 0 {
		fmt.Fprintf(w, "  Publishers: %s\n", strings.Join(b.Publishers, ", "))
	}
	if len(b.Subjects) > 0 {
		fmt.Fprintf(w, "  Subjects:   %s\n", strings.Join(b.Subjects, ", "))
	}
	fmt.Fprintf(w, "  Languages:  %s\n", strings.Join(b.Languages, ", "))
	if url, ok := core.CoverURL(b, models.CoverLarge); ok {
		fmt.Fprintf(w, "  Cover:      %s\n", url)
	} else {
		fmt.Fprintln(w, "  Cover:      (none)")
	}
	fmt.Fprintf(w, "  Link:       %s\n", core.Permalink(b))
	if core.Favorites().Contains(b) {
		fmt.Fprintln(w, "  * In your favorites")
	}
}

func renderUser(w io.Writer, u *models.User) {
	if u == nil {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	if joined := u.Joined(); !joined.IsZero() {
		fmt.Fprintf(w, "Member since %s\n", joined.Format("January 2006"))
	}
}

func yearSuffix(b models.Book) string {
	if b.FirstPublishYear == nil {
		return ""
	}
	return fmt.Sprintf(" (%d)", *b.FirstPublishYear)
}
