// Command api runs meta-hub's HTTP edge: the Webhook Receiver, the manual
// delivery/alert/oauth endpoints, and the Transform Preview tool. It wires
// every domain service against Postgres and Redis and serves chi's router
// until a signal asks it to shut down.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/flowenginer/meta-hub/httpapi"
	"github.com/flowenginer/meta-hub/ingest"
	ingestpg "github.com/flowenginer/meta-hub/ingest/postgres"
	logsinkpg "github.com/flowenginer/meta-hub/logsink/postgres"
	mappingpg "github.com/flowenginer/meta-hub/mapping/postgres"
	"github.com/flowenginer/meta-hub/route"
	routepg "github.com/flowenginer/meta-hub/route/postgres"
)

const shutdownTimeout = 30 * time.Second

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
	mappingRepo := mappingpg.New(db)
	logRepo := logsinkpg.New(db)
	alertRepo := alertpg.New(db)
	ingestRepo := ingestpg.New(db)

	resolver := route.NewResolver(routeRepo)
	destClient := destination.NewClient()
	deliverySvc := delivery.NewService(eventRepo, destRepo, destClient, logRepo, 4, logger)

	graphClient := ingest.NewGraphClient()
	ingestSvc := ingest.NewService(cfg.MetaWebhookVerifyToken, cfg.MetaAppSecret, resolver, mappingRepo, eventRepo, ingestRepo, ingestRepo, graphClient, deliverySvc, logRepo, logger)

	cooldown := alert.NewCooldownCache(redisClient)
	notifier := alert.NewNotifier(logRepo, alert.NopMailer{}, logger)
	alertSvc := alert.NewService(alertRepo, eventRepo, routeRepo, logRepo, cooldown, notifier, logger)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Ingest:   ingestSvc,
		Delivery: deliverySvc,
		Alert:    alertSvc,
		OAuth: httpapi.OAuthConfig{
			AppID:       cfg.MetaAppID,
			StateSecret: []byte(cfg.OAuthStateSecret),
			AppURL:      cfg.AppURL,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)

	logger.Info("api listening", zap.String("port", cfg.HTTPPort))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
	if err := <-errShutdown; err != nil {
		logger.Fatal("shutdown failed", zap.Error(err))
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	switch err := server.Shutdown(ctxTimeout); err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing server closed: %w", err)
	default:
		errShutdown <- err
	}
}
