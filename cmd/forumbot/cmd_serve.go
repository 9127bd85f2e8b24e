package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forumbot/internal/config"
	"github.com/user/forumbot/internal/execlog"
	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/realtime"
	"github.com/user/forumbot/internal/runtime"
	"github.com/user/forumbot/internal/scheduler"
	"github.com/user/forumbot/internal/state"
	"github.com/user/forumbot/internal/state/memstore"
	"github.com/user/forumbot/internal/types"
	"github.com/user/forumbot/internal/webhook"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "forumbot.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// stores holds the backends selected from configuration.
type stores struct {
	content types.ContentStore
	claims  types.ClaimLog
	execLog types.ExecutionLog
	execNm  string
	closers []func() error
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("close store failed", "error", err)
		}
	}
}

// openStores connects to Postgres when configured. Without a database the
// in-memory store is used and executions go to JSONL files in the data dir.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	if cfg.Database.URL == "" {
		slog.Warn("no database configured, using in-memory content store")
		mem := memstore.New()
		s.content, s.claims = mem, mem
	} else {
		db, err := state.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		pg := state.NewPGStore(db, cfg.Database.ClaimTable, cfg.Database.ExecutionTable)
		s.closers = append(s.closers, pg.Close)
		s.content, s.claims = pg, pg
		s.execLog, s.execNm = pg, "postgres"
	}

	if cfg.Database.ExecLogURL != "" {
		db, err := state.OpenPostgres(ctx, cfg.Database.ExecLogURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("execution log database: %w", err)
		}
		pg := state.NewPGStore(db, cfg.Database.ClaimTable, cfg.Database.ExecutionTable)
		s.closers = append(s.closers, pg.Close)
		s.execLog, s.execNm = pg, "postgres"
	}
	if s.execLog == nil {
		s.execLog, s.execNm = state.NewExecutionFile(cfg.DataDir), "jsonl"
	}
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.BotUserID == "" {
		return fmt.Errorf("bot_user_id is not configured (set BOT_USER_ID)")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()

	live := realtime.New(realtime.Config{
		URL:    cfg.Redis.URL,
		Prefix: cfg.Redis.Prefix,
		TTL:    cfg.RedisTTL(),
		LogCap: cfg.Redis.LogCap,
	})
	defer live.Close()

	sinks := []execlog.Sink{{Name: st.execNm, Log: st.execLog}}
	var executions webhook.ExecutionReader
	if live.Enabled() {
		sinks = append(sinks, execlog.Sink{Name: "realtime", Log: live})
		executions = live
	}
	logger := execlog.New(sinks, execlog.WithMetrics(m))
	defer logger.Wait()

	rt := runtime.New(cfg, st.content, st.claims, runtime.WithMetrics(m), runtime.WithExecLog(logger))

	sched := scheduler.New(scheduler.SweepJob(rt.Claims(), cfg.Claims.SweepSchedule, cfg.StaleAfter(), m))
	sched.Start()
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           webhook.NewServer(rt, cfg.MaxConcurrent, executions, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("forumbot started",
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"execution_log", st.execNm,
		"realtime", live.Enabled(),
		"pid_file", pidPath,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("webhook server shutdown", "error", err)
	}
	return nil
}
