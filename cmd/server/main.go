package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"contracttracker/internal/handler"
	"contracttracker/internal/httpserver"
	"contracttracker/internal/repository"
	"contracttracker/internal/service/baseline"
	"contracttracker/internal/service/certificate"
	"contracttracker/internal/service/edit"
	"contracttracker/internal/service/interceptor"
	"contracttracker/internal/service/plancommit"
	"contracttracker/internal/service/variation"
	"contracttracker/pkg/config"
	"contracttracker/pkg/db"
	"contracttracker/pkg/logger"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/outbox"
	redisclient "contracttracker/pkg/redis"
	"contracttracker/pkg/util"
)

func main() {
	env := flag.String("env", config.GetConfigEnv(), "config environment (base.yaml + <env>.yaml)")
	configDir := flag.String("config", config.GetEnv("CONFIG_DIR", "config"), "config directory")
	flag.Parse()

	cfg, err := config.Load(*env, *configDir)
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.ServiceName)
	defer log.Sync()

	log.Info("Starting contract tracker API...",
		zap.String("env", *env),
		zap.String("db_host", cfg.DB.Host),
		zap.Bool("fail_closed", cfg.Governance.FailClosed),
	)

	shutdownTracing, err := otel.Init(context.Background(), cfg.ServiceName, cfg.Otel, log)
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

	// Redis（变更单编号、提交去重）
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Repositories
	st := repository.NewStore(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn, log)

	// Services
	ic := interceptor.NewService(st, cfg.Governance.FailClosed, log)
	baselineService := baseline.NewService(st, log)
	certificateService := certificate.NewService(st, log)
	editService := edit.NewService(st, ic, log)
	variationService := variation.NewService(st, variation.NewRedisRefGenerator(rdb, nil, log), log)
	commitGuard := util.NewDeduper(rdb, cfg.Governance.CommitGuardTTL(), log)
	planService := plancommit.NewService(st, commitGuard, log)
	replayService := outbox.NewReplayService(outboxRepo, log)

	router := httpserver.NewRouter(
		cfg.ServiceName,
		httpserver.Handlers{
			Baseline:    handler.NewBaselineHandler(baselineService, log),
			Certificate: handler.NewCertificateHandler(certificateService, log),
			Edit:        handler.NewEditHandler(editService, log),
			Variation:   handler.NewVariationHandler(variationService, log),
			Plan:        handler.NewPlanHandler(planService, log),
			Admin:       handler.NewAdminHandler(replayService, log),
		},
		cfg.JWT.Secret,
		map[string]httpserver.ReadinessCheck{
			"db": st.Ping,
			"redis": func(ctx context.Context) error {
				return redisclient.Ping(ctx, rdb)
			},
		},
		log,
	)
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down contract tracker API gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}

