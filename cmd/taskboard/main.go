package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/config"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/exitcode"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/ui"
	"github.com/tgienger/taskboard/internal/ui/views"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Getenv, os.Stderr)
	switch {
	case errors.Is(err, config.ErrVersion):
		fmt.Printf("%s %s (commit: %s, built: %s)\n", config.AppName, version, commit, date)
		return exitcode.Success
	case errors.Is(err, flag.ErrHelp):
		return exitcode.Success
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitcode.UserError
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		return exitcode.StorageError
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return exitcode.StorageError
	}
	defer logFile.Close()
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	database, err := db.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
		return exitcode.StorageError
	}
	defer database.Close()

	store := session.New(database)
	if _, err := store.Restore(); err != nil {
		// a broken saved session only means signing in again
		logger.Warn("restore session", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(api.Config{
		BaseURL: cfg.APIURL,
		Tokens:  store,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})

	logger.Info("starting", "version", version, "api", cfg.APIURL)
	app := ui.NewApp(views.Deps{Ctx: ctx, API: client, Session: store})
	defer app.Close()
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("ui exited", "error", err)
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		return exitcode.UIError
	}
	return exitcode.Success
}
