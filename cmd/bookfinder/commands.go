package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/bookfinder/internal/app"
	"github.com/drallgood/bookfinder/internal/auth"
	"github.com/drallgood/bookfinder/internal/search"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the catalog by title",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "pages",
				Usage: "Number of result pages to fetch",
				Value: 1,
			},
		},
		Action: withCore(func(c *cli.Context, core *app.App) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("a search query is required")
			}

			snap, err := runSearch(c, core, query, c.Int("pages"))
			if err != nil {
				return err
			}
			renderResults(c.App.Writer, snap.Results, 0, core.Favorites())
			renderFooter(c.App.Writer, snap)
			return nil
		}),
	}
}

// runSearch performs a search plus up to pages-1 load-mores
func runSearch(c *cli.Context, core *app.App, query string, pages int) (search.Snapshot, error) {
	session := core.Search()
	session.Search(c.Context, query)
	snap := session.Snapshot()
	for i := 1; i < pages && snap.HasMore && snap.State == search.StateLoaded; i++ {
		session.LoadMore(c.Context)
		snap = session.Snapshot()
	}
	if snap.State == search.StateError {
		return snap, errors.New(snap.Err)
	}
	return snap, nil
}

func favoritesCommand() *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"favs"},
		Usage:   "Show and edit saved books",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved books",
				Action: withCore(func(c *cli.Context, core *app.App) error {
					renderFavorites(c.App.Writer, core.Favorites().List())
					return nil
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a saved book by catalog id",
				ArgsUsage: "<id>",
				Action: withCore(func(c *cli.Context, core *app.App) error {
					id := c.Args().First()
					book, ok := core.Favorites().Get(id)
					if !ok {
						return fmt.Errorf("%s is not a favorite", id)
					}
					if _, err := core.Favorites().Toggle(c.Context, book); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Removed %q from favorites\n", book.Title)
					return nil
				}),
			},
			{
				Name:      "add",
				Usage:     "Search, then save the N-th result",
				ArgsUsage: "<query...>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "index",
						Aliases:  []string{"n"},
						Usage:    "1-based position of the result to save",
						Required: true,
					},
				},
				Action: withCore(func(c *cli.Context, core *app.App) error {
					query := strings.Join(c.Args().Slice(), " ")
					if strings.TrimSpace(query) == "" {
						return errors.New("a search query is required")
					}
					index := c.Int("index")
					pages := (index-1)/core.Search().PageSize() + 1

					snap, err := runSearch(c, core, query, pages)
					if err != nil {
						return err
					}
					if index < 1 || index > len(snap.Results) {
						return fmt.Errorf("no result #%d (got %d results)", index, len(snap.Results))
					}

					book := snap.Results[index-1]
					if core.Favorites().Contains(book) {
						fmt.Fprintf(c.App.Writer, "%q is already a favorite\n", book.Title)
						return nil
					}
					if _, err := core.Favorites().Toggle(c.Context, book); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Added %q to favorites\n", book.Title)
					return nil
				}),
			},
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in (local mock, no credential check)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "name"},
		},
		Action: withCore(func(c *cli.Context, core *app.App) error {
			return login(c, core, auth.Credentials{
				Email:    c.String("email"),
				Password: c.String("password"),
				Name:     c.String("name"),
			})
		}),
	}
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create a local mock account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "confirm", Usage: "Repeat the password"},
			&cli.StringFlag{Name: "name"},
		},
		Action: withCore(func(c *cli.Context, core *app.App) error {
			return login(c, core, auth.Credentials{
				Email:           c.String("email"),
				Password:        c.String("password"),
				ConfirmPassword: c.String("confirm"),
				Name:            c.String("name"),
				SignUp:          true,
			})
		}),
	}
}

func login(c *cli.Context, core *app.App, creds auth.Credentials) error {
	user, err := core.Auth().Login(c.Context, creds)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Welcome, %s!\n", user.FirstName())
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and forget the saved session",
		Action: withCore(func(c *cli.Context, core *app.App) error {
			if err := core.Auth().Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "Signed out")
			return nil
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Action: withCore(func(c *cli.Context, core *app.App) error {
			renderUser(c.App.Writer, core.Auth().User())
			return nil
		}),
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive search session",
		Action: withCore(func(c *cli.Context, core *app.App) error {
			return newShell(core, c.App.Reader, c.App.Writer).Run(c.Context)
		}),
	}
}
