package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AriMathi1/Fitness-app-server/common/auth"
	apperrors "github.com/AriMathi1/Fitness-app-server/common/errors"
	"github.com/AriMathi1/Fitness-app-server/common/logger"
	commonmw "github.com/AriMathi1/Fitness-app-server/common/middleware"
	"github.com/AriMathi1/Fitness-app-server/config"
	"github.com/AriMathi1/Fitness-app-server/controllers"
	"github.com/AriMathi1/Fitness-app-server/database"
	"github.com/AriMathi1/Fitness-app-server/events"
	"github.com/AriMathi1/Fitness-app-server/gateway"
	"github.com/AriMathi1/Fitness-app-server/models"
	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/AriMathi1/Fitness-app-server/repository"
	"github.com/AriMathi1/Fitness-app-server/routes"
	"github.com/AriMathi1/Fitness-app-server/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stores struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	classes  repository.ClassRepository
	closeFn  func()
}

func main() {
	log := logger.Initialize(os.Getenv("APP_ENV"))

	ctx := context.Background()

	// AWS clients
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)
	var secrets config.SecretGetter
	if awsErr != nil {
		log.Warn("AWS config unavailable, secrets and CloudWatch disabled", zap.Error(awsErr))
	} else {
		secrets = awspkg.NewSecretsClient(awsCfg)
	}

	cfg, err := config.LoadConfig(ctx, secrets)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.CloudWatchEnabled && awsErr == nil {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.ServiceName, cfg.CloudWatchLogGroup, true)
		if err != nil {
			log = logger.Initialize(cfg.Env)
			log.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		} else {
			log = logger.InitializeWithWriter(cfg.Env, cwLogs)
		}
	} else {
		log = logger.Initialize(cfg.Env)
	}
	defer log.Sync() //nolint:errcheck

	var metrics *awspkg.MetricsClient
	if awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	st, err := openStores(ctx, cfg, awsCfg, awsErr, log)
	if err != nil {
		log.Fatal("Failed to open payment stores", zap.Error(err))
	}
	defer st.closeFn()

	deps := services.Dependencies{
		Payments:    st.payments,
		Bookings:    st.bookings,
		Classes:     st.classes,
		Currency:    cfg.Currency,
		ServiceName: cfg.ServiceName,
		Logger:      log,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}

	if cfg.AuditLogEnabled() {
		db, err := database.ConnectPostgres(log, cfg.PostgresDSN(), &models.WebhookEventLog{})
		if err != nil {
			log.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		defer func(db *gorm.DB) { _ = database.ClosePostgres(db) }(db)
		deps.AuditLog = repository.NewGormWebhookEventRepository(db)
	}

	publisher, err := newPublisher(cfg, awsCfg, awsErr, log)
	if err != nil {
		log.Fatal("Failed to set up event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck
	deps.Publisher = publisher

	stripeGateway := gateway.NewStripeGateway(gateway.StripeConfig{
		APIKey:        cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookKey,
	}, log)
	deps.Gateway = stripeGateway

	paymentService := services.NewPaymentService(deps)
	paymentController := controllers.NewPaymentController(paymentService, stripeGateway, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := controllers.RegisterValidators(); err != nil {
		log.Fatal("Failed to register request validators", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.RateLimitMiddleware(120, 30, "/api/payments/webhook"))
	r.Use(commonmw.MetricsMiddleware(metrics, cfg.ServiceName))
	// 30-second request timeout
	r.Use(commonmw.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterHealthRoute(r, cfg.ServiceName)
	routes.RegisterPaymentRoutes(r, paymentController, auth.NewTokenVerifier(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Payment service started",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreBackend),
		zap.String("event_bus", cfg.EventBus),
		zap.Bool("audit_log", cfg.AuditLogEnabled()),
	)
	<-quit
	log.Info("Shutting down payment service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

// openStores connects the configured document store and wraps the class
// lookup in the Redis cache when REDIS_URL is set.
func openStores(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, awsErr error, log *zap.Logger) (*stores, error) {
	st := &stores{closeFn: func() {}}

	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		if awsErr != nil {
			return nil, awsErr
		}
		client := database.NewDynamoClient(awsCfg)
		st.payments = repository.NewDynamoPaymentRepository(client, cfg.DynamoPaymentsTable)
		st.bookings = repository.NewDynamoBookingRepository(client, cfg.DynamoBookingsTable)
		st.classes = repository.NewDynamoClassRepository(client, cfg.DynamoClassesTable)
		log.Info("Using DynamoDB stores", zap.String("payments_table", cfg.DynamoPaymentsTable))

	default:
		client, db, err := database.ConnectMongo(ctx, log, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		paymentRepo := repository.NewMongoPaymentRepository(db)
		indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := paymentRepo.EnsureIndexes(indexCtx); err != nil {
			_ = database.DisconnectMongo(client)
			return nil, err
		}
		st.payments = paymentRepo
		st.bookings = repository.NewMongoBookingRepository(db)
		st.classes = repository.NewMongoClassRepository(db)
		st.closeFn = func() { _ = database.DisconnectMongo(client) }
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, class cache disabled", zap.Error(err))
			return st, nil
		}
		st.classes = repository.NewCachedClassRepository(st.classes, rdb, cfg.ClassCacheTTL, log)
		prev := st.closeFn
		st.closeFn = func() {
			_ = rdb.Close()
			prev()
		}
	}
	return st, nil
}

func newPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, log *zap.Logger) (events.Publisher, error) {
	switch cfg.EventBus {
	case config.BusSNS:
		if awsErr != nil {
			return nil, awsErr
		}
		return events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN, log), nil
	case config.BusSQS:
		if awsErr != nil {
			return nil, awsErr
		}
		return events.NewSQSPublisher(awspkg.NewSQSSender(awsCfg, cfg.PaymentQueueURL), log), nil
	case config.BusKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaPaymentTopic, log), nil
	default:
		log.Info("Event bus disabled, payment events will not be published")
		return events.NopPublisher{}, nil
	}
}
