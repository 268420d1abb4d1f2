package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/tally/internal/config"
	"github.com/rpggio/tally/internal/mcp"
	"github.com/rpggio/tally/internal/rows"
)

var (
	transportFlag string
	version       = "dev"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool surface over stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVarP(&transportFlag, "transport", "t", "", "Transport: stdio or http (overrides config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transportFlag != "" {
		cfg.Transport.Mode = transportFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Stdout carries JSON-RPC in stdio mode.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("TALLY_LOG_PATH"); logPath != "" {
		fileWriter, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := newLogger(logWriter)

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path := watchPath(); path != "" {
		err := config.Watch(ctx, path, logger, func(next config.Config) {
			lvl := parseLogLevel(next.Log.Level)
			if lvl != level.Level() {
				level.Set(lvl)
				logger.Info("log level changed", "level", lvl)
			}
		})
		if err != nil {
			logger.Warn("config watch disabled", "path", path, "error", err)
		}
	}

	// Each session scrolls its own chunk window.
	grids := mcp.NewGridSessions(func() (mcp.Grid, error) {
		p, err := rows.NewProvider(a.data, cfg.Grid, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, mcp.DefaultGridIdle)
	defer grids.Close()

	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Data:     a.data,
			Grids:    grids,
			Activity: a.journal,
			Timers:   a.timers,
		},
		Version: version,
		Logger:  logger,
	})

	if cfg.Transport.Mode == "stdio" {
		return runStdio(ctx, logger, server)
	}
	return runHTTP(ctx, logger, server, cfg.Server.Host, cfg.Server.Port)
}

// watchPath returns the config file to watch, if any. A --log-level flag
// pins the level, so nothing is watched.
func watchPath() string {
	if logLevel != "" {
		return ""
	}
	if configPath != "" {
		return configPath
	}
	return os.Getenv("TALLY_CONFIG_PATH")
}

func runStdio(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport")

	// Run blocks until stdin closes or ctx is canceled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server, host string, port int) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
