package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/rows"
	"github.com/rpggio/tally/internal/timer"
)

// DataService defines the week and record operations needed by MCP.
type DataService interface {
	ListWeeks(ctx context.Context) ([]week.Week, error)
	GetWeek(ctx context.Context, id int64) (week.Week, error)
	CreateWeek(ctx context.Context, req week.CreateRequest) (week.Week, error)
	UpdateWeek(ctx context.Context, id int64, req week.UpdateRequest) (week.Week, error)
	DeleteWeek(ctx context.Context, id int64) error
	RefreshWeek(id int64)
	GetRecord(ctx context.Context, id int64) (record.Record, error)
	CreateRecord(ctx context.Context, weekID int64, fields record.Fields) (int64, error)
	UpdateRecord(ctx context.Context, id int64, changes record.Changes) (bool, error)
	DeleteRecord(ctx context.Context, id int64) (bool, error)
	GetAggregate(ctx context.Context, weekID int64) (record.Aggregate, error)
	CacheStats() []cache.Stats
}

// GridService defines the paged row access needed by MCP.
type GridService interface {
	RowCount(ctx context.Context, weekID int64) (int, error)
	RowAt(ctx context.Context, weekID int64, index int) (record.Record, error)
	Window() []rows.ChunkInfo
}

// ActivityService defines change journal operations needed by MCP.
type ActivityService interface {
	Recent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// TimerService defines timer operations needed by MCP.
type TimerService interface {
	Start(ctx context.Context, recordID int64) (timer.Status, error)
	Pause(ctx context.Context, recordID int64) (timer.Status, error)
	Resume(recordID int64) (timer.Status, error)
	Stop(ctx context.Context, recordID int64) (time.Duration, error)
	Active() []timer.Status
}

// Services contains all services needed by MCP.
type Services struct {
	Data     DataService
	Grids    *GridSessions
	Activity ActivityService
	Timers   TimerService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tally",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
