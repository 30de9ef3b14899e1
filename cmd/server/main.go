package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vivianur/hackathon-web/internal/alert"
	"github.com/vivianur/hackathon-web/internal/clock"
	"github.com/vivianur/hackathon-web/internal/config"
	"github.com/vivianur/hackathon-web/internal/db"
	"github.com/vivianur/hackathon-web/internal/handler"
	"github.com/vivianur/hackathon-web/internal/logging"
	"github.com/vivianur/hackathon-web/internal/metrics"
	"github.com/vivianur/hackathon-web/internal/repository"
	"github.com/vivianur/hackathon-web/internal/router"
	"github.com/vivianur/hackathon-web/internal/service"
)

const shutdownTimeout = 10 * time.Second

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Run the MindEase API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./config.yaml or ./config/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if _, err := db.RunMigrations(ctx, database, cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	clk := clock.New()
	collector := metrics.NewCollector(logger)

	userRepo := repository.NewUserRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	taskRepo := repository.NewTaskRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)

	pomodoroService := service.NewPomodoroService(
		sessionRepo, taskRepo, settingsRepo, clk, collector, logger,
		service.PomodoroOptions{
			Alerts: alert.Config{
				EstimatedFallback: cfg.Alerts.FallbackEstimate,
				LongSession:       cfg.Alerts.LongSession,
				ContinuedSession:  cfg.Alerts.ContinuedSession,
				MilestoneEvery:    cfg.Alerts.MilestoneEvery,
			},
			EngineIdleTTL: cfg.EngineIdleTTL,
			TickInterval:  cfg.TickInterval,
			HistoryLimit:  cfg.HistoryLimit,
		},
	)
	defer pomodoroService.Close()

	authService := service.NewAuthService(userRepo, sessionRepo, settingsRepo, clk, cfg.JWTSecret, cfg.TokenTTL)
	taskService := service.NewTaskService(taskRepo, clk)
	settingsService := service.NewSettingsService(settingsRepo, pomodoroService, clk)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService, service.NewProfileService(userRepo, clk)),
		Pomodoro: handler.NewPomodoroHandler(pomodoroService),
		Alerts:   handler.NewAlertHandler(pomodoroService),
		Settings: handler.NewSettingsHandler(settingsService),
		Tasks:    handler.NewTaskHandler(taskService),
	}, collector, logger, cfg.CORSOrigins)

	tickCtx, cancelTicks := context.WithCancel(ctx)
	defer cancelTicks()
	go pomodoroService.Run(tickCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// event streams hold requests open until their subscriptions end
	pomodoroService.CloseStreams()
	shutdownErr := srv.Shutdown(shutdownCtx)
	cancelTicks()
	pomodoroService.Close()
	if shutdownErr != nil {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	return nil
}
