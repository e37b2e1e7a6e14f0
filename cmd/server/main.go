package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shuleconnect/backend/internal/config"
	"github.com/shuleconnect/backend/internal/database"
	"github.com/shuleconnect/backend/internal/handlers"
	"github.com/shuleconnect/backend/internal/jobs"
	"github.com/shuleconnect/backend/internal/middleware"
	"github.com/shuleconnect/backend/internal/queue"
	"github.com/shuleconnect/backend/internal/routes"
	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/shuleconnect/backend/internal/services/payment/momo"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment variables")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	cfg := config.LoadConfig()

	// An empty signing secret would accept tokens signed with the empty key.
	if err := cfg.ValidateJWT(); err != nil {
		log.WithError(err).Fatal("invalid JWT configuration")
	}

	// Missing credentials are fatal in strict mode; otherwise the mock
	// fallback keeps the pipeline exercisable (e.g. staging).
	if err := cfg.ValidateCredentials(); err != nil {
		if cfg.MoMo.StrictMode {
			log.WithError(err).Fatal("provider credentials required in strict mode")
		}
		log.WithError(err).Warn("running without provider credentials, payment requests will use the mock responder")
	}

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}

	// Stores
	txRepo := database.NewPaymentTransactionRepo(db)
	ledgerRepo := database.NewCreditLedgerRepo(db)

	// Reconciliation queue and ledger
	redisQueue := queue.NewRedisQueue(redisClient, log.WithField("component", "queue"))
	alerter := queue.NewFulfillmentAlerter(redisQueue, log.WithField("component", "alerter"))
	ledger := credit.NewLedger(ledgerRepo, alerter, log.WithField("component", "ledger"))
	catalog := credit.DefaultCatalog()

	// MoMo pipeline
	client := momo.NewClient(momo.ClientConfig{
		BaseURL:           cfg.MoMo.BaseURL,
		APIUserID:         cfg.MoMo.APIUserID,
		APIKey:            cfg.MoMo.APIKey,
		SubscriptionKey:   cfg.MoMo.SubscriptionKey,
		TargetEnvironment: cfg.MoMo.TargetEnvironment,
	}, log.WithField("component", "momo_client"))

	mock := momo.NewMockResponder(2*time.Second, 10*time.Second, momo.SystemClock, log.WithField("component", "momo_mock"))

	paymentService := momo.NewService(txRepo, client, mock, catalog, momo.ServiceConfig{
		Currency:   cfg.MoMo.Currency,
		MinAmount:  cfg.MoMo.MinAmount,
		MaxAmount:  cfg.MoMo.MaxAmount,
		StrictMode: cfg.MoMo.StrictMode,
	}, log.WithField("component", "momo_service"))

	pollInitialDelay := time.Duration(cfg.Poll.InitialDelaySeconds) * time.Second
	pollInterval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
	poller := momo.NewPoller(txRepo, client, mock, momo.PollerConfig{
		InitialDelay: pollInitialDelay,
		Interval:     pollInterval,
		MaxAttempts:  cfg.Poll.MaxAttempts,
	}, momo.SystemClock, log.WithField("component", "poller"))

	// Fulfillment retry worker
	retryWorker := queue.NewWorker(
		redisQueue,
		queue.JobTypeFulfillmentRetry,
		jobs.NewFulfillmentRetryHandler(ledger, log.WithField("component", "fulfillment_retry")),
		2,
		log.WithField("component", "worker"),
	)
	retryWorker.Start()

	// Sweep pending transactions whose polling loop never concluded.
	staleAge := pollInitialDelay + time.Duration(cfg.Poll.MaxAttempts)*pollInterval + 5*time.Minute
	sweeper := jobs.NewStaleTransactionSweeper(txRepo, staleAge, log.WithField("component", "sweeper"))
	sweeper.Start()

	// HTTP
	paymentHandler := handlers.NewPaymentHandler(cfg, paymentService, poller, ledger, catalog, log.WithField("component", "handler"))
	rateLimiter := middleware.NewRateLimiter(5, 10)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	routes.SetupPaymentRoutes(router, paymentHandler, cfg.JWT.Secret, rateLimiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	poller.Shutdown()
	sweeper.Stop()
	retryWorker.Stop()
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exiting")
}
