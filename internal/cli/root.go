// Package cli implements the tally commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/config"
	"github.com/rpggio/tally/internal/dataservice"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/events"
	"github.com/rpggio/tally/internal/rows"
	"github.com/rpggio/tally/internal/sqlite"
	"github.com/rpggio/tally/internal/timer"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

// level is shared by every logger the CLI builds so a config reload can
// change it at runtime.
var level = new(slog.LevelVar)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "tally",
	Short:         "Weekly record tracking with a cached data layer",
	Long:          "Track timed work records by week. Serves an MCP tool surface over stdio or HTTP and offers direct commands for scripting.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TALLY_CONFIG_PATH)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides config and $TALLY_DB_PATH)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level.Set(parseLogLevel(cfg.Log.Level))
	return cfg, nil
}

// newLogger returns a tint logger writing to w. Color is used only when w is
// a terminal.
func newLogger(w io.Writer) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app holds the wired data stack for one command.
type app struct {
	db      *sqlite.DB
	data    *dataservice.Service
	journal *activity.Service
	grid    *rows.Provider
	timers  *timer.Manager
	detach  func()
	logger  *slog.Logger
}

func openApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	data := dataservice.NewService(
		sqlite.NewRecordRepository(db),
		sqlite.NewWeekRepository(db),
		cache.NewRegistry(cfg.Cache.Pools, logger),
		events.NewNotifier(logger),
		logger,
	)
	journal := activity.NewService(sqlite.NewChangeLogRepository(db), logger)
	detach := journal.Attach(data)

	grid, err := rows.NewProvider(data, cfg.Grid, logger)
	if err != nil {
		detach()
		db.Close()
		return nil, err
	}

	return &app{
		db:      db,
		data:    data,
		journal: journal,
		grid:    grid,
		timers:  timer.NewManager(data, cfg.Timer.Interval, logger),
		detach:  detach,
		logger:  logger,
	}, nil
}

// Close stops timers, saving their durations, then releases the database.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.timers.Close(ctx)
	a.grid.Close()
	a.detach()
	return errors.Join(err, a.db.Close())
}

// withApp loads configuration, opens the data stack and runs fn. Logs go to
// stderr so stdout carries only command output.
func withApp(fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, newLogger(os.Stderr))
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close())
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
