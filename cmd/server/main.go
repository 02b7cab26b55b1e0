package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"order-status-service/config"
	"order-status-service/internal/api"
	"order-status-service/internal/broker"
	"order-status-service/internal/notify"
	"order-status-service/internal/redisclient"
	"order-status-service/internal/rules"
	"order-status-service/internal/service"
	"order-status-service/internal/store"
	"order-status-service/internal/util"
	"order-status-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "order-status-service"

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order status service")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	evaluator, err := rules.NewEvaluator()
	if err != nil {
		logger.Fatal("Failed to initialize requirement evaluator", zap.Error(err))
	}

	var sender notify.EmailSender
	if cfg.Mail.SendGridAPIKey != "" {
		sender = notify.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromAddress, cfg.Mail.FromName)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, status emails will only be logged")
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, db)

	statusCatalog := service.NewStatusCatalog(db, redisClient, cfg.Workflow.StatusCacheTTL)

	hooks := service.NewHooks()
	hooks.OnStatusChanged(service.PublishTransitionEvents(eventPublisher))

	workflow := service.NewStatusWorkflow(
		db,
		statusCatalog,
		evaluator,
		dispatcher,
		service.PrometheusMetrics{},
		hooks,
		service.WorkflowConfig{
			PaidStatusCode:          cfg.Workflow.PaidStatusCode,
			RestampPaymentOnReentry: cfg.Workflow.RestampPaymentOnReentry,
		},
	)
	graph := service.NewTransitionGraph(db)
	lockLog := service.NewLockLog(db)
	processor := service.NewOrderEventProcessor(db, statusCatalog, workflow,
		cfg.Workflow.PaidStatusCode, cfg.Workflow.SystemActorID)

	refresher, err := worker.NewStatusCacheRefresher(cfg.Workflow.StatusCacheRefresh, statusCatalog, redisClient)
	if err != nil {
		logger.Fatal("Failed to schedule status cache refresh", zap.Error(err))
	}

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	orderWorker := worker.NewOrderWorker(orderConsumer, processor)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Workflow:       workflow,
		Graph:          graph,
		Orders:         db,
		LockLog:        lockLog,
		Statuses:       statusCatalog,
		Idempotency:    redisClient,
		IdempotencyTTL: cfg.Workflow.IdempotencyTTL,
		Checks: map[string]api.Pinger{
			"database": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := orderWorker.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return refresher.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		return orderWorker.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}
