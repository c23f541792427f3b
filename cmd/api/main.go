package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"occasio/config"
	_ "occasio/docs"
	"occasio/internal/adapters/auth"
	"occasio/internal/adapters/email"
	"occasio/internal/adapters/qrcode"
	"occasio/internal/adapters/storage"
	httpdelivery "occasio/internal/delivery/http"
	"occasio/internal/delivery/http/controllers"
	"occasio/internal/domain"
	"occasio/internal/repository/postgres"
	"occasio/internal/repository/redis"
	"occasio/internal/services"

	"golang.org/x/crypto/bcrypt"
)

const (
	serviceName     = "occasio-api"
	shutdownTimeout = 15 * time.Second
)

// @title Occasio API
// @version 1.0
// @description Event management: organizers publish events, users register and RSVP, check-in by QR code, reminders before start.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := config.SetupTracing(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	participantRepo := postgres.NewParticipantRepository(db)
	registrationStore := postgres.NewRegistrationStore(db)
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	imageRepo := postgres.NewImageRepository(db)

	reminderStore, closeReminderStore, err := newReminderStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeReminderStore()

	// Adapters
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mailer.Provider,
		FromAddress: cfg.Mailer.From,
		FromName:    "Occasio",
		SES: email.SESConfig{
			Region:          cfg.Mailer.AWSRegion,
			AccessKeyID:     cfg.Mailer.AccessKeyID,
			SecretAccessKey: cfg.Mailer.SecretAccessKey,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	blobs, err := storage.NewBlobStore(storage.Config{
		Provider: cfg.Blob.Provider,
		S3: storage.S3Config{
			Bucket:          cfg.Blob.S3Bucket,
			Region:          cfg.Blob.S3Region,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretAccessKey,
			PublicURL:       cfg.Blob.S3PublicURL,
		},
		Cloud: storage.CloudinaryConfig{
			CloudName: cfg.Blob.CloudinaryCloudName,
			APIKey:    cfg.Blob.CloudinaryAPIKey,
			APISecret: cfg.Blob.CloudinaryAPISecret,
			Folder:    cfg.Blob.CloudinaryFolder,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	tokenIssuer := auth.NewJWTIssuer(cfg.JWTSecret)
	tokenVerifier := auth.NewJWTVerifier(cfg.JWTSecret)
	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)

	defaultRSVP, err := domain.ParseRSVPStatus(cfg.DefaultRSVP)
	if err != nil {
		return fmt.Errorf("REGISTRATION_DEFAULT_RSVP: %w", err)
	}

	// Services
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	scheduler := services.NewReminderScheduler(reminderStore, eventRepo, participantRepo, userRepo, emailService,
		cfg.ReminderSweepInterval, 0, logger)
	imageService := services.NewImageService(eventRepo, imageRepo, blobs, logger, cfg.RequestTimeout)
	eventService := services.NewEventService(eventRepo, participantRepo, userRepo, imageRepo, imageService,
		scheduler, emailService, cfg.FrontendURL, logger, cfg.RequestTimeout)
	registrationService := services.NewRegistrationService(eventRepo, participantRepo, registrationStore, userRepo,
		emailService, qrcode.NewEncoder(qrcode.DefaultSize), defaultRSVP, logger, cfg.RequestTimeout)
	checkInService := services.NewCheckInService(eventRepo, participantRepo, logger, cfg.RequestTimeout)
	authService := services.NewAuthService(userRepo, roleRepo, verificationRepo, hasher, tokenIssuer,
		cfg.JWTExpiry, cfg.VerificationTTL, emailService, cfg.FrontendURL, logger)

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start reminder scheduler: %w", err)
	}
	defer scheduler.Stop()

	handler := httpdelivery.NewHandler(httpdelivery.Controllers{
		Auth:         controllers.NewAuthController(logger, authService),
		Events:       controllers.NewEventController(logger, eventService, checkInService),
		Images:       controllers.NewImageController(logger, imageService),
		Registration: controllers.NewRegistrationController(logger, registrationService),
		Users:        controllers.NewUserController(logger, registrationService),
	}, tokenVerifier, cfg.CORSOrigins, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newReminderStore picks where pending reminders live. The returned func
// releases any connection the store opened.
func newReminderStore(ctx context.Context, cfg *config.Config, db *sql.DB) (domain.ReminderStore, func(), error) {
	switch cfg.ReminderStore {
	case "postgres", "":
		return postgres.NewReminderStore(db), func() {}, nil
	case "redis":
		client := redis.NewClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redis.NewReminderStore(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown reminder store %q", cfg.ReminderStore)
	}
}
