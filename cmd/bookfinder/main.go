// Command bookfinder searches the Open Library catalog from the terminal and
// keeps a local favorites list and mock session.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/bookfinder/internal/app"
	"github.com/drallgood/bookfinder/internal/config"
	"github.com/drallgood/bookfinder/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		stop()
		logger.Get().Error("Error running bookfinder", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

// newCLI builds the command tree reading from in and writing to out/errOut
func newCLI(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "bookfinder",
		Usage:     "Search Open Library and keep a list of favorite books",
		Version:   fmt.Sprintf("%s (%s) %s", version, commit, date),
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, console)",
			},
			&cli.StringFlag{
				Name:  "storage-driver",
				Usage: "Storage backend (sqlite, file, memory)",
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Storage location for the sqlite and file backends",
			},
			&cli.StringFlag{
				Name:  "catalog-url",
				Usage: "Base URL of the Open Library catalog",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			favoritesCommand(),
			loginCommand(),
			signupCommand(),
			logoutCommand(),
			whoamiCommand(),
			shellCommand(),
		},
	}
}

// loadConfig applies the global flags over the loaded configuration
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("storage-driver") {
		cfg.Storage.Driver = strings.ToLower(c.String("storage-driver"))
	}
	if c.IsSet("storage-path") {
		cfg.Storage.Path = c.String("storage-path")
	}
	if c.IsSet("catalog-url") {
		cfg.Catalog.BaseURL = strings.TrimSuffix(c.String("catalog-url"), "/")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withCore builds and starts the application for one command and closes
// it afterwards
func withCore(fn func(c *cli.Context, core *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger.ForceSetup(logger.Config{
			Level:      cfg.Logging.Level,
			Format:     logger.ParseLogFormat(cfg.Logging.Format),
			Output:     c.App.ErrWriter,
			TimeFormat: time.RFC3339,
		})

		core, err := app.New(cfg, app.WithLogger(logger.Get()))
		if err != nil {
			return err
		}
		defer func() {
			if err := core.Close(); err != nil {
				logger.Get().Warn("Failed to close application", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()

		if err := core.Start(c.Context); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		return fn(c, core)
	}
}
