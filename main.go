package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/common/auth"
	"checkout-service/common/logger"
	commonmw "checkout-service/common/middleware"
	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var cloudWatch io.Writer
	if awsErr == nil && cfg.CloudWatchLogGroup != "" {
		if cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName); err == nil {
			cloudWatch = cw
		} else {
			log.Printf("CloudWatch Logs unavailable: %v", err)
		}
	}

	zlog, err := logger.New(cfg.Env, cloudWatch)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if awsErr != nil {
		zlog.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(awsErr))
	}

	var metrics awspkg.MetricsRecorder
	if awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)
	}

	db, err := database.ConnectPostgres(cfg.PostgresDSN(), zlog, &models.PaymentOrder{})
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	events, closeEvents := newEventPublisher(cfg, awsCfg, awsErr, zlog)
	defer closeEvents()

	policy := models.ShippingPolicy{
		Currency:              cfg.Currency,
		FreeShippingThreshold: cfg.FreeShippingThresholdPaise,
		FlatShippingFee:       cfg.FlatShippingFeePaise,
	}
	checkoutService := services.NewCheckoutService(
		repository.NewRedisSessionRepository(rdb, cfg.SessionTTL),
		repository.NewRedisCartRepository(rdb),
		policy,
		metrics,
		zlog,
	)
	paymentService := services.NewPaymentService(
		services.PaymentServiceConfig{KeyID: cfg.RazorpayKeyID, Currency: cfg.Currency},
		repository.NewGormPaymentOrderRepository(db),
		services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayTimeout, zlog),
		services.NewSignatureVerifier(cfg.RazorpayKeySecret),
		events,
		checkoutService,
		metrics,
		zlog,
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(zlog))
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORS(cfg.AllowedOrigins))
	r.Use(commonmw.RequestTimeout(30 * time.Second))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	parser := auth.NewTokenParser(cfg.JWTSecret)
	limiter := commonmw.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, 10*time.Minute)
	routes.RegisterPaymentRoutes(r, controllers.NewPaymentController(paymentService, zlog), parser, limiter)
	routes.RegisterCheckoutRoutes(r, controllers.NewCheckoutController(checkoutService), parser)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Checkout service started", zap.String("port", cfg.Port), zap.String("event_transport", cfg.EventTransport))
	<-ctx.Done()
	zlog.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}

// newEventPublisher picks the payment event transport. SNS falls back to no
// publishing when AWS is not configured.
func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, zlog *zap.Logger) (services.PaymentEventPublisher, func()) {
	switch cfg.EventTransport {
	case config.EventTransportKafka:
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.KafkaPaymentTopic, zlog)
		return producer, func() {
			if err := producer.Close(); err != nil {
				zlog.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}
	case config.EventTransportSNS:
		if awsErr != nil {
			zlog.Warn("SNS event transport requested without AWS config, events disabled")
			return services.NoopEventPublisher{}, func() {}
		}
		return services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN), func() {}
	default:
		return services.NoopEventPublisher{}, func() {}
	}
}
