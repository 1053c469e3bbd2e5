package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"contracttracker/pkg/config"
	"contracttracker/pkg/db"
	"contracttracker/pkg/logger"
	"contracttracker/pkg/mq"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/outbox"
)

func main() {
	env := flag.String("env", config.GetConfigEnv(), "config environment (base.yaml + <env>.yaml)")
	configDir := flag.String("config", config.GetEnv("CONFIG_DIR", "config"), "config directory")
	replayFailed := flag.Int("replay-failed", 0, "requeue up to N failed outbox events and exit")
	flag.Parse()

	cfg, err := config.Load(*env, *configDir)
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.ServiceName + "-worker")
	defer log.Sync()

	log.Info("Starting outbox worker...",
		zap.String("env", *env),
		zap.String("mq_url", cfg.MQ.URL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, cfg.ServiceName+"-worker", cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	outboxRepo := outbox.NewRepository(dbConn, log)

	if *replayFailed > 0 {
		n, err := outbox.NewReplayService(outboxRepo, log).ReplayFailedEvents(ctx, *replayFailed)
		if err != nil {
			log.Fatal("Replay failed", zap.Error(err))
		}
		log.Info("Replay finished", zap.Int("requeued", n))
		return
	}

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(time.Duration(cfg.Outbox.IntervalMS) * time.Millisecond).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)

	log.Info("Outbox dispatcher running")
	dispatcher.Start(ctx)

	log.Info("Outbox worker shutdown complete")
}

