package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rvachhani/presenced/internal/attend/cache"
	"github.com/rvachhani/presenced/internal/attend/cooldown"
	"github.com/rvachhani/presenced/internal/attend/directory"
	"github.com/rvachhani/presenced/internal/attend/matcher"
	"github.com/rvachhani/presenced/internal/attend/service"
	sqlitestore "github.com/rvachhani/presenced/internal/attend/store/sqlite"
	"github.com/rvachhani/presenced/internal/attend/vector"
	"github.com/rvachhani/presenced/internal/broker"
	"github.com/rvachhani/presenced/internal/config"
	"github.com/rvachhani/presenced/internal/db"
	"github.com/rvachhani/presenced/internal/httpapi"
	"github.com/rvachhani/presenced/internal/metrics"
)

func main() {
	cfg := config.FromEnv()

	level := slog.LevelInfo
	if cfg.Env == "dev" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database + single-writer worker
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Error("database open failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			logger.Warn("dev seed failed", "error", err)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	// Stores
	attendanceStore := sqlitestore.NewAttendanceStore(conn, writer)
	employeeStore := sqlitestore.NewEmployeeStore(conn, writer)

	// Shared pipeline state: one directory, one cooldown tracker, one
	// cache — handles threaded into both the listener and the admin API.
	m := metrics.New(prometheus.DefaultRegisterer)

	dir := directory.New(employeeStore, logger)
	if _, err := dir.Reload(ctx); err != nil {
		// Continue with an empty directory; the matcher reports
		// no_match until a reload succeeds.
		logger.Warn("initial directory load failed", "error", err)
	}

	refresher := directory.NewRefresher(dir,
		time.Duration(cfg.ReloadIntervalMinute)*time.Minute, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	match := matcher.New(dir, vector.RawExtractor{Dim: cfg.TemplateDim}, cfg.Tolerance, logger, m)
	gate := cooldown.New(time.Duration(cfg.CooldownSeconds) * time.Second)
	recent := cache.New(cfg.RecentCapacity)

	// Broker listener first: the pipeline publishes through it.
	listener := broker.NewListener(broker.Config{
		Broker:      cfg.MQTTBroker,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		ClientID:    fmt.Sprintf("presenced-%s", uuid.NewString()[:8]),
		TopicFrame:  cfg.MQTTTopicFrame,
		TopicResult: cfg.MQTTTopicResult,
		QoS:         byte(cfg.MQTTQoS),
		Mode:        broker.Mode(cfg.Mode),
	}, logger, m)

	pipeline := service.NewPipeline(service.Dependencies{
		Matcher:   match,
		Cooldown:  gate,
		Sink:      attendanceStore,
		Recent:    recent,
		Publisher: listener,
		Logger:    logger,
		Metrics:   m,
	})
	listener.Bind(pipeline)

	if err := listener.Start(ctx); err != nil {
		logger.Error("mqtt listener start failed", "error", err)
		os.Exit(1)
	}
	defer listener.Stop()

	status := service.NewStatus(listener, dir, recent, attendanceStore, cfg.DBPath)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		Pipeline:       pipeline,
		Status:         status,
		Attendance:     attendanceStore,
		Employees:      employeeStore,
		Directory:      dir,
		Recent:         recent,
		MetricsHandler: promhttp.Handler(),
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
