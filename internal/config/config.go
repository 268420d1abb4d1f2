package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/dataservice"
	"github.com/rpggio/tally/internal/rows"
	"github.com/rpggio/tally/internal/timer"
)

// Config defines application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Grid      rows.Options    `yaml:"grid"`
	Timer     TimerConfig     `yaml:"timer"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig selects how the tool server is exposed: "stdio" or "http".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig overrides the named pool table. Pools not listed keep their
// defaults.
type CacheConfig struct {
	Pools map[string]cache.PoolConfig `yaml:"pools"`
}

type TimerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		DB: DBConfig{
			Path: "tally.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Pools: dataservice.DefaultPools(),
		},
		Grid: rows.DefaultOptions(),
		Timer: TimerConfig{
			Interval: timer.DefaultInterval,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in that order. An empty path falls back to
// TALLY_CONFIG_PATH.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TALLY_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("TALLY_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TALLY_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("TALLY_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("TALLY_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the application cannot run
// with.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("transport mode must be stdio or http, got %q", c.Transport.Mode))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	for _, name := range dataservice.Pools {
		pc, ok := c.Cache.Pools[name]
		if !ok {
			errs = append(errs, fmt.Errorf("cache pool %q is not configured", name))
			continue
		}
		if pc.MaxSize < 1 {
			errs = append(errs, fmt.Errorf("cache pool %q max_size must be positive, got %d", name, pc.MaxSize))
		}
		if pc.TTL < 0 {
			errs = append(errs, fmt.Errorf("cache pool %q ttl must not be negative", name))
		}
	}
	if err := c.Grid.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Timer.Interval < 0 {
		errs = append(errs, errors.New("timer interval must not be negative"))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Watch reloads the file at path whenever it changes and passes each valid
// configuration to fn. Invalid files are logged and skipped. The watch ends
// when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(Config)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors often replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					logger.WarnContext(ctx, "ignoring invalid config change", "path", abs, "error", err)
					continue
				}
				logger.InfoContext(ctx, "config reloaded", "path", abs)
				fn(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WarnContext(ctx, "config watch error", "error", err)
			}
		}
	}()
	return nil
}
