package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/rcbh/clubsite/applib"
)

const defaultConfigPath = "clubsite.yaml"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "clubsite",
		Usage: "Riding Club of Barrington Hills website and calendar API.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   defaultConfigPath,
				Usage:   "Path to configuration file",
				EnvVars: []string{"CLUBSITE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "Path to the SQLite database file",
				EnvVars: []string{"CLUBSITE_DB_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn or error",
				EnvVars: []string{"CLUBSITE_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides. The default
// config file may be absent.
func loadConfig(c *cli.Context) (*applib.Config, *slog.Logger, error) {
	path := c.String("config")
	cfg, err := applib.LoadConfig(path, !c.IsSet("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("db-path") {
		cfg.Database.Path = c.String("db-path")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Port for the HTTP server",
				EnvVars: []string{"CLUBSITE_PORT", "PORT"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := applib.Init(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return application.Serve(ctx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or upgrade the database schema and exit.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			db, err := applib.OpenDatabase(context.Background(), cfg, logger)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}
