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
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/config"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	bookingEvents "github.com/eventoh/service-booking/internal/events"
	"github.com/eventoh/service-booking/internal/handler"
	"github.com/eventoh/service-booking/internal/media"
	"github.com/eventoh/service-booking/internal/notification"
	"github.com/eventoh/service-booking/internal/payment"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/database"
	"github.com/eventoh/service-booking/internal/platform/health"
	"github.com/eventoh/service-booking/internal/platform/kafka"
	"github.com/eventoh/service-booking/internal/platform/lock"
	"github.com/eventoh/service-booking/internal/platform/logger"
	"github.com/eventoh/service-booking/internal/platform/middleware"
	"github.com/eventoh/service-booking/internal/platform/tracing"
	"github.com/eventoh/service-booking/internal/repository"
	"github.com/eventoh/service-booking/internal/scheduler"
)

const serviceName = "service-booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service-booking failed", zap.Error(err))
	}
	log.Info("service-booking stopped")
}

func run(cfg *config.ServiceConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.String("db_driver", cfg.DBDriver),
	)

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, serviceName, cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	locker, closeLocker := newLocker(cfg, log)
	defer closeLocker()

	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	vendorRepo := repository.NewGormVendorRepository(db)
	userDirectory := repository.NewGormUserDirectory(db)

	// Adapters
	var gateway application.PaymentGateway
	if sg, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, log); err == nil {
		gateway = sg
	} else {
		log.Warn("stripe disabled, remaining payments cannot be collected online", zap.Error(err))
	}
	mediaStore := newMediaStore(cfg, log)
	notifier := newNotifier(cfg, log)

	// Application services
	bookingService := application.NewBookingService(
		bookingRepo,
		vendorRepo,
		bookingDomain.NewStandardPricingStrategy(),
		locker,
		gateway,
		application.CheckoutURLs{SuccessURL: cfg.Stripe.SuccessURL, CancelURL: cfg.Stripe.CancelURL},
		kafkaProducer,
		log,
	)
	vendorService := application.NewVendorService(vendorRepo, bookingRepo, mediaStore, kafkaProducer, log)
	reminderService := application.NewReminderService(
		bookingRepo,
		userDirectory,
		notifier,
		locker,
		kafkaProducer,
		log,
		application.WithBatchSize(cfg.Sweep.BatchSize),
	)

	// HTTP
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins...))
	router.Use(middleware.SecurityHeadersMiddleware())

	health.NewHandler(db, serviceName).RegisterRoutes(router)

	api := &router.RouterGroup
	handler.NewVendorHandler(vendorService).RegisterRoutes(api, verifier)
	handler.NewBookingHandler(bookingService).RegisterRoutes(api, verifier)
	handler.NewAdminHandler(bookingService, vendorService).RegisterRoutes(api, verifier)
	handler.NewPaymentHandler(payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret), bookingService, log).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down service-booking...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced shutdown", zap.Error(err))
		}
		return nil
	})

	if len(cfg.KafkaConfig.Brokers) > 0 {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		paymentConsumer := bookingEvents.NewPaymentEventConsumer(cfg.KafkaConfig.Brokers, groupID, bookingService, log)
		defer func() { _ = paymentConsumer.Close() }()

		g.Go(func() error {
			log.Info("starting payment event consumer")
			if err := paymentConsumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment event consumer error", zap.Error(err))
			}
			return nil
		})
	}

	if cfg.Sweep.Enabled {
		sweeps := scheduler.New(reminderService, cfg.Sweep.Schedule, cfg.Sweep.RunOnStart, log)
		g.Go(func() error {
			return sweeps.Start(gctx)
		})
	}

	return g.Wait()
}

func openDatabase(cfg *config.ServiceConfig, log *zap.Logger) (*gorm.DB, error) {
	models := []interface{}{&repository.BookingModel{}, &repository.VendorModel{}, &repository.UserModel{}}

	if cfg.DBDriver == "sqlite" {
		db, err := database.ConnectSQLite(cfg.SQLitePath, log, models...)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		log.Warn("using sqlite; overlapping bookings are guarded by the in-process lock only")
		return db, nil
	}

	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to run auto-migration: %w", err)
		}
		log.Info("database migration completed (dev auto-migrate)")
		return db, nil
	}

	if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
		return nil, err
	}
	return db, nil
}

func newVerifier(ctx context.Context, cfg *config.ServiceConfig) (auth.Verifier, error) {
	if cfg.JWTConfig.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.JWTConfig.OIDCIssuer, cfg.JWTConfig.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise oidc verifier: %w", err)
		}
		return v, nil
	}
	return auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTokenTTL), nil
}

// newLocker returns a Redis-backed locker shared by all instances, or an
// in-process locker when no Redis address is configured.
func newLocker(cfg *config.ServiceConfig, log *zap.Logger) (lock.Locker, func()) {
	if cfg.RedisConfig.Addr == "" {
		log.Warn("redis not configured, booking locks are process local")
		return lock.NewLocalLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	return lock.NewRedisLocker(client, "eventoh:", log, lock.WithTTL(cfg.LockTTL)), func() { _ = client.Close() }
}

func newMediaStore(cfg *config.ServiceConfig, log *zap.Logger) application.MediaStore {
	if cfg.CloudinaryURL == "" {
		log.Warn("cloudinary not configured, portfolio images are kept in memory")
		return media.NewMemoryStore(cfg.MediaBaseURL)
	}
	store, err := media.NewCloudinaryStore(cfg.CloudinaryURL, log)
	if err != nil {
		log.Error("cloudinary disabled", zap.Error(err))
		return media.NewMemoryStore(cfg.MediaBaseURL)
	}
	return store
}

func newNotifier(cfg *config.ServiceConfig, log *zap.Logger) application.Notifier {
	mailer, err := notification.NewSMTPMailer(notification.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		ReplyTo:     cfg.SMTP.ReplyTo,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
	}, log)
	if err != nil {
		log.Warn("smtp not configured, reminders are logged only", zap.Error(err))
		return notification.NewLogNotifier(log)
	}
	return mailer
}
