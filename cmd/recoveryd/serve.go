package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/api"
	"github.com/fvgm-spec/disaster-recovery-agent/backoff"
	"github.com/fvgm-spec/disaster-recovery-agent/engine"
	"github.com/fvgm-spec/disaster-recovery-agent/store"
	"github.com/fvgm-spec/disaster-recovery-agent/store/memory"
	"github.com/fvgm-spec/disaster-recovery-agent/store/postgres"
	redisstore "github.com/fvgm-spec/disaster-recovery-agent/store/redis"
	"github.com/fvgm-spec/disaster-recovery-agent/store/sqlite"
)

// storeConnectAttempts bounds the startup ping loop against a backend
// that is still coming up.
const storeConnectAttempts = 5

func newServeCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile := v.GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("recoveryd: read config: %w", err)
				}
			}
			return serve(cmd.Context(), v)
		},
	}

	defaults := recovery.DefaultConfig()
	cmd.Flags().String("config", "", "path to a config file")
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("store", "memory", "store backend (memory, sqlite, postgres, redis)")
	cmd.Flags().String("sqlite-path", "recovery.db", "sqlite database path")
	cmd.Flags().String("postgres-dsn", "", "postgres connection string")
	cmd.Flags().String("redis-addr", "localhost:6379", "redis address")
	cmd.Flags().String("workflows-dir", "", "directory of workflow definition JSON files")
	cmd.Flags().Duration("workflow-timeout", defaults.WorkflowTimeout, "wall-clock deadline per execution")
	cmd.Flags().Duration("task-timeout", defaults.TaskTimeout, "default timeout per task invocation")
	cmd.Flags().Int("max-concurrent", defaults.MaxConcurrent, "engine-wide in-flight execution cap")
	cmd.Flags().Duration("shutdown-timeout", defaults.ShutdownTimeout, "graceful shutdown deadline")

	// Every flag is also settable as RECOVERY_<FLAG> with dashes as
	// underscores, e.g. RECOVERY_POSTGRES_DSN.
	v.SetEnvPrefix("RECOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	logger := newLogger(v.GetString("log-level"))

	cfg := recovery.DefaultConfig()
	cfg.WorkflowTimeout = v.GetDuration("workflow-timeout")
	cfg.TaskTimeout = v.GetDuration("task-timeout")
	cfg.MaxConcurrent = v.GetInt("max-concurrent")
	cfg.ShutdownTimeout = v.GetDuration("shutdown-timeout")

	st, err := openStore(ctx, v, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := engine.New(
		engine.WithStore(st),
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("recoveryd: build engine: %w", err)
	}

	if err := loadWorkflows(eng, v.GetString("workflows-dir"), logger); err != nil {
		return err
	}
	if err := eng.ResumeAll(ctx); err != nil {
		return fmt.Errorf("recoveryd: resume executions: %w", err)
	}

	srv := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           api.New(eng, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "store", v.GetString("store"))
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("recoveryd: serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("engine stop", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openStore builds the configured backend, waits for it to become
// reachable, and applies migrations.
func openStore(ctx context.Context, v *viper.Viper, logger *slog.Logger) (store.Store, error) {
	backend := v.GetString("store")

	var (
		st  store.Store
		err error
	)
	switch backend {
	case "memory":
		st = memory.New()
	case "sqlite":
		st, err = sqlite.New(v.GetString("sqlite-path"), sqlite.WithLogger(logger))
	case "postgres":
		st, err = postgres.New(ctx, v.GetString("postgres-dsn"), postgres.WithLogger(logger))
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: v.GetString("redis-addr")})
		st = redisstore.New(client, redisstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("recoveryd: unknown store backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("recoveryd: open %s store: %w", backend, err)
	}

	if err := waitForStore(ctx, st, logger); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("recoveryd: migrate %s store: %w", backend, err)
	}
	return st, nil
}

// waitForStore pings until the backend answers, backing off between
// attempts.
func waitForStore(ctx context.Context, st store.Store, logger *slog.Logger) error {
	strategy := backoff.DefaultStrategy()
	for attempt := 1; ; attempt++ {
		err := st.Ping(ctx)
		if err == nil {
			return nil
		}
		if attempt >= storeConnectAttempts {
			return fmt.Errorf("recoveryd: store unreachable after %d attempts: %w", attempt, err)
		}
		delay := strategy.Delay(attempt)
		logger.Warn("store not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// loadWorkflows registers every *.json definition in dir.
func loadWorkflows(eng *engine.Engine, dir string, logger *slog.Logger) error {
	if dir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("recoveryd: scan workflows dir: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("no workflow definitions found", "dir", dir)
		return nil
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("recoveryd: read workflow %s: %w", file, err)
		}
		def, err := eng.RegisterWorkflowJSON(data)
		if err != nil {
			return fmt.Errorf("recoveryd: register workflow %s: %w", file, err)
		}
		logger.Info("workflow loaded", "workflow", def.Name, "file", file)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
