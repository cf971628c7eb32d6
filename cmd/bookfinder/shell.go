package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/drallgood/bookfinder/internal/app"
	"github.com/drallgood/bookfinder/internal/auth"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/search"
)

const shellHelp = `Commands:
  search <title>                 start a new search
  more                           load the next page
  show <n>                       details for result n
  fav <n>                        toggle result n as a favorite
  favs                           list favorites
  login <email> <password> [name]
  logout
  whoami
  theme                          toggle dark mode
  help
  quit
`

// shell is a line-oriented front end. Search output is rendered from
// session snapshots delivered through a subscription.
type shell struct {
	core *app.App
	in   io.Reader
	out  io.Writer

	// outMu guards writes from the subscriber and the command loop
	outMu   sync.Mutex
	printed int
}

func newShell(core *app.App, in io.Reader, out io.Writer) *shell {
	return &shell{core: core, in: in, out: out}
}

func (s *shell) printf(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Run reads commands until quit, EOF or ctx is done
func (s *shell) Run(ctx context.Context) error {
	cancel := s.core.Search().Subscribe(s.onSnapshot)
	defer cancel()

	if name := s.core.Auth().FirstName(); name != "" {
		s.printf("Welcome back, %s!\n", name)
	}
	s.printf("Type 'help' for commands.\n")

	scanner := bufio.NewScanner(s.in)
	for {
		s.printf("> ")
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if quit := s.exec(ctx, fields[0], fields[1:]); quit {
			return nil
		}
	}
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) (quit bool) {
	switch strings.ToLower(cmd) {
	case "search", "s":
		if len(args) == 0 {
			s.printf("usage: search <title>\n")
			return false
		}
		s.core.Search().Search(ctx, strings.Join(args, " "))
	case "more", "m":
		snap := s.core.Search().Snapshot()
		if !snap.HasMore || snap.Query == "" {
			s.printf("No more results\n")
			return false
		}
		s.core.Search().LoadMore(ctx)
	case "show":
		if b, ok := s.resultAt(args); ok {
			s.outMu.Lock()
			renderBook(s.out, s.core, b)
			s.outMu.Unlock()
		}
	case "fav":
		if b, ok := s.resultAt(args); ok {
			added, err := s.core.Favorites().Toggle(ctx, b)
			switch {
			case err != nil:
				s.printf("Could not save favorites: %v\n", err)
			case added:
				s.printf("Added %q to favorites\n", b.Title)
			default:
				s.printf("Removed %q from favorites\n", b.Title)
			}
		}
	case "favs", "favorites":
		s.outMu.Lock()
		renderFavorites(s.out, s.core.Favorites().List())
		s.outMu.Unlock()
	case "login":
		if len(args) < 2 {
			s.printf("usage: login <email> <password> [name]\n")
			return false
		}
		user, err := s.core.Auth().Login(ctx, auth.Credentials{
			Email:    args[0],
			Password: args[1],
			Name:     strings.Join(args[2:], " "),
		})
		if err != nil {
			s.printf("%v\n", err)
			return false
		}
		s.printf("Welcome, %s!\n", user.FirstName())
	case "logout":
		if err := s.core.Auth().Logout(ctx); err != nil {
			s.printf("%v\n", err)
			return false
		}
		s.printf("Signed out\n")
	case "whoami":
		s.outMu.Lock()
		renderUser(s.out, s.core.Auth().User())
		s.outMu.Unlock()
	case "theme":
		if s.core.ToggleTheme() {
			s.printf("Theme: dark\n")
		} else {
			s.printf("Theme: light\n")
		}
	case "help", "?":
		s.printf("%s", shellHelp)
	case "quit", "exit", "q":
		return true
	default:
		s.printf("Unknown command %q. Type 'help' for commands.\n", cmd)
	}
	return false
}

// resultAt resolves a 1-based result number from args
func (s *shell) resultAt(args []string) (models.Book, bool) {
	if len(args) != 1 {
		s.printf("usage: <command> <result number>\n")
		return models.Book{}, false
	}
	n, err := strconv.Atoi(args[0])
	results := s.core.Search().Snapshot().Results
	if err != nil || n < 1 || n > len(results) {
		s.printf("No result #%s\n", args[0])
		return models.Book{}, false
	}
	return results[n-1], true
}

// onSnapshot renders a search transition. New searches print the full
// list; load-mores print only the appended page.
func (s *shell) onSnapshot(snap search.Snapshot) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	switch snap.State {
	case search.StateLoading:
		if snap.Offset == 0 {
			fmt.Fprintf(s.out, "Searching for %q...\n", snap.Query)
			s.printed = 0
		} else {
			fmt.Fprintln(s.out, "Loading more...")
		}
	case search.StateError:
		fmt.Fprintln(s.out, snap.Err)
	case search.StateLoaded:
		if s.printed > len(snap.Results) {
			s.printed = 0
		}
		renderResults(s.out, snap.Results[s.printed:], s.printed, s.core.Favorites())
		s.printed = len(snap.Results)
		renderFooter(s.out, snap)
	}
}
