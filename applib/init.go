package applib

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcbh/clubsite/audit"
	"github.com/rcbh/clubsite/calendar"
	"github.com/rcbh/clubsite/database"
)

// Migrations lists the schema of every package owning tables
func Migrations() []database.Migration {
	return []database.Migration{
		calendar.Migration(),
		audit.Migration(),
	}
}

// OpenDatabase connects to the configured database and brings its schema up
// to date.
func OpenDatabase(ctx context.Context, cfg *Config, logger *slog.Logger) (*database.Database, error) {
	dsn := database.SQLiteDSN(cfg.Database.Path, cfg.Database.BusyTimeout)
	db, err := database.Connect(cfg.Database.Driver, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(ctx, Migrations()...); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database %s: %w", cfg.Database.Path, err)
	}
	logger.Info("Database ready", "path", cfg.Database.Path)
	return db, nil
}

// Init opens the database and builds the application around it.
func Init(ctx context.Context, cfg *Config, logger *slog.Logger) (*Application, error) {
	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewApplication(cfg, db, logger), nil
}
