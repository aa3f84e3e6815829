// Command worker runs meta-hub's two background tick loops: the Delivery
// Worker's claim-and-attempt cycle and the Alert Evaluator's rule
// evaluation cycle. It serves no API endpoints; its only HTTP listener is
// the metrics server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/alert"
	alertpg "github.com/flowenginer/meta-hub/alert/postgres"
	"github.com/flowenginer/meta-hub/config"
	"github.com/flowenginer/meta-hub/delivery"
	"github.com/flowenginer/meta-hub/destination"
	destpg "github.com/flowenginer/meta-hub/destination/postgres"
	eventpg "github.com/flowenginer/meta-hub/event/postgres"
	logsinkpg "github.com/flowenginer/meta-hub/logsink/postgres"
	"github.com/flowenginer/meta-hub/metrics"
	routepg "github.com/flowenginer/meta-hub/route/postgres"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBURL)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal("pinging database", zap.Error(err))
	}

	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("parsing redis url", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("pinging redis", zap.Error(err))
	}

	routeRepo := routepg.New(db)
	eventRepo := eventpg.New(db)
	destRepo := destpg.New(db)
	logRepo := logsinkpg.New(db)
	alertRepo := alertpg.New(db)

	collector := metrics.NewPostgresCollector(eventRepo, alertRepo)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		logger.Fatal("creating metrics exporter", zap.Error(err))
	}
	recorder, err := metrics.NewAttemptRecorder(exporter.Meter())
	if err != nil {
		logger.Fatal("creating attempt recorder", zap.Error(err))
	}

	destClient := destination.NewClient().WithRecorder(recorder)
	deliverySvc := delivery.NewService(eventRepo, destRepo, destClient, logRepo, 4, logger)
	deliveryWorker := delivery.NewWorker(deliverySvc, cfg.DeliveryPollInterval, logger)

	cooldown := alert.NewCooldownCache(redisClient)
	notifier := alert.NewNotifier(logRepo, alert.NopMailer{}, logger)
	alertSvc := alert.NewService(alertRepo, eventRepo, routeRepo, logRepo, cooldown, notifier, logger)
	alertWorker := alert.NewWorker(alertSvc, cfg.AlertEvalInterval, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: exporter.ServeHTTP()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go deliveryWorker.Start(ctx)
	go alertWorker.Start(ctx)

	logger.Info("worker started",
		zap.Duration("delivery_interval", cfg.DeliveryPollInterval),
		zap.Duration("alert_interval", cfg.AlertEvalInterval),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	<-ctx.Done()
	logger.Info("shutting down worker")
	deliveryWorker.Stop()
	alertWorker.Stop()
	_ = metricsSrv.Close()
	_ = exporter.Shutdown(context.Background())
}
