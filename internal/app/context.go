package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/config"
	"villagehub/internal/db"
	"villagehub/internal/engine"
	"villagehub/internal/engine/auth"
	"villagehub/internal/migrate"
)

// App bundles what every command needs for one workspace.
type App struct {
	Workspace string
	DB        *sqlx.DB
	Config    *config.Config
	Log       *slog.Logger
	Engine    engine.Engine
	Auth      auth.Service
}

// Open loads the workspace config (defaults when absent), opens and migrates
// the database and builds the engine.
func Open(ctx context.Context, workspace string, logOut io.Writer) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	log := NewLogger(logOut, cfg)
	conn, err := db.Open(db.Config{Workspace: workspace, BusyTimeoutMS: cfg.Store.BusyTimeoutMS})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("workspace opened", "path", db.Path(workspace), "schema_version", version)
	eng := engine.New(conn, cfg, log)
	return &App{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Log:       log,
		Engine:    eng,
		Auth:      auth.Service{Repo: eng.Repo},
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewLogger builds the structured logger described by cfg.Log.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	format := "text"
	if cfg != nil {
		switch strings.ToLower(cfg.Log.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		if cfg.Log.Format != "" {
			format = cfg.Log.Format
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
