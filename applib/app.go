package applib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/rcbh/clubsite/applib/httputils"
	"github.com/rcbh/clubsite/applib/middleware"
	"github.com/rcbh/clubsite/audit"
	"github.com/rcbh/clubsite/calendar"
	"github.com/rcbh/clubsite/database"
)

type Application struct {
	config *Config
	db     *database.Database
	logger *slog.Logger
	store  *calendar.Store
	audit  *audit.Logger
}

func NewApplication(cfg *Config, db *database.Database, logger *slog.Logger) *Application {
	auditLog := audit.NewLogger(db.GetDB())
	return &Application{
		config: cfg,
		db:     db,
		logger: logger,
		store:  calendar.NewStore(db, auditLog),
		audit:  auditLog,
	}
}

// Routes builds the complete HTTP handler, middleware included.
func (app *Application) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		httputils.HandleAPIResponse(w, r, map[string]string{"status": "ok"}, nil, http.StatusOK)
	})

	calendar.NewHandler(app.store, app.audit, app.logger).Register(mux)

	if dir := app.config.Server.StaticDir; dir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(dir)))
	}

	return middleware.ApplyDefault(mux, app.logger, app.config.Server.AllowedOrigins)
}

// Serve listens until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout and closes the database.
func (app *Application) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", app.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.config.Addr(), err)
	}
	return app.ServeListener(ctx, listener)
}

func (app *Application) ServeListener(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:     app.Routes(),
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:    slog.NewLogLogger(app.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		app.db.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down server", "timeout", app.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if err := app.db.Close(); err != nil {
		app.logger.Error("Error closing database", "error", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	app.logger.Info("Server exited properly")
	return nil
}

func (app *Application) GetDatabase() *database.Database {
	return app.db
}

func (app *Application) Store() *calendar.Store {
	return app.store
}
