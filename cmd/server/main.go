// @title Fieldworks API
// @version 1.0
// @description Estimates, invoices, client messaging and the client portal for field-service businesses.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Staff access token: "Bearer {token}"
// @securityDefinitions.apikey PortalAuth
// @in header
// @name Authorization
// @description Client portal token: "Bearer {token}"
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "fieldworks/docs"
	"fieldworks/internal/config"
	"fieldworks/internal/delivery"
	"fieldworks/internal/delivery/noop"
	"fieldworks/internal/delivery/resend"
	"fieldworks/internal/delivery/ses"
	"fieldworks/internal/delivery/sqs"
	"fieldworks/internal/domain"
	"fieldworks/internal/handler"
	"fieldworks/internal/logger"
	"fieldworks/internal/middleware"
	"fieldworks/internal/port"
	"fieldworks/internal/realtime"
	"fieldworks/internal/render"
	"fieldworks/internal/repository/postgres"
	"fieldworks/internal/router"
	"fieldworks/internal/service"
	s3storage "fieldworks/internal/storage/s3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: reading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Log, cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	itemRepo := postgres.NewLineItemRepo(db)
	clientRepo := postgres.NewClientRepo(db)
	accessRepo := postgres.NewPortalAccessRepo(db)
	productRepo := postgres.NewProductRepo(db)
	convoRepo := postgres.NewConversationRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	deliveryRepo := postgres.NewDeliveryRepo(db)

	// Initialize delivery
	senders, err := buildSenders(cfg, appLogger)
	if err != nil {
		return err
	}
	gateway := delivery.NewDispatcher(deliveryRepo, senders, delivery.RetryConfig{
		MaxRetries:      cfg.Delivery.MaxRetries,
		InitialInterval: cfg.Delivery.InitialInterval,
		MaxInterval:     cfg.Delivery.MaxInterval,
		MaxElapsed:      cfg.Delivery.Timeout,
		StaleAfter:      cfg.Delivery.Timeout,
	}, appLogger)

	// Initialize storage. Without it documents are sent without a PDF link.
	var storage port.ObjectStorage
	if cfg.S3.Enabled {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	} else {
		appLogger.Warn("S3 disabled; sent documents will not include a PDF link")
	}

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWT, cfg.Portal)
	docSvc := service.NewDocumentService(docRepo, itemRepo, clientRepo, storage,
		render.PDFRenderer{Issuer: cfg.Business.Name, Compress: true},
		service.PublishConfig{Bucket: cfg.S3.Bucket, PresignExpiry: cfg.S3.PresignExpiry},
		appLogger)
	sessionSvc := service.NewBuilderSessionService(docRepo, itemRepo, productRepo, gateway, docSvc, cfg.Session, appLogger)
	productSvc := service.NewProductService(productRepo)
	convoSvc := service.NewConversationService(convoRepo, messageRepo, gateway,
		fmt.Sprintf("Message from %s", cfg.Business.Name), appLogger)
	portalSvc := service.NewPortalService(accessRepo, clientRepo, docRepo, itemRepo, authSvc, appLogger)

	watcher := service.NewConversationWatcher(convoRepo,
		realtime.NewPGListener(cfg.DB.DSN(), cfg.Realtime.Channel, appLogger),
		service.WatcherConfig{PollInterval: cfg.Realtime.PollInterval, ReconnectDelay: cfg.Realtime.ReconnectDelay},
		appLogger)

	limits := router.Limiters{
		API:         middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, appLogger),
		PortalLogin: middleware.NewPerMinuteLimiter(cfg.Portal.LoginPerMin, cfg.Portal.LoginBurst, appLogger),
	}

	// Background workers stop when ctx is canceled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The reaper closes every open session when it stops, so it outlives the
	// HTTP server and only stops once in-flight requests have drained.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()

	var workers sync.WaitGroup
	startWorker := func(ctx context.Context, fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn(ctx)
		}()
	}
	startWorker(reaperCtx, sessionSvc.StartReaper)
	startWorker(ctx, watcher.Start)
	startWorker(ctx, func(ctx context.Context) { limits.API.Cleanup(ctx, 5*time.Minute) })
	startWorker(ctx, func(ctx context.Context) { limits.PortalLogin.Cleanup(ctx, 5*time.Minute) })

	// Initialize handlers
	handlers := router.Handlers{
		Session:      handler.NewSessionHandler(sessionSvc, appLogger),
		Document:     handler.NewDocumentHandler(docSvc, appLogger),
		Product:      handler.NewProductHandler(productSvc, appLogger),
		Conversation: handler.NewConversationHandler(convoSvc, watcher, appLogger),
		Portal:       handler.NewPortalHandler(portalSvc, appLogger),
		Health:       handler.NewHealthHandler(db, watcher),
	}

	r := router.Setup(cfg, authSvc, handlers, limits, appLogger)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// Write timeout stays zero so conversation streams are not cut off.
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		stopReaper()
		workers.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	drain(shutdownCtx, srv, stopReaper, &workers, appLogger)
	appLogger.Info("server exited")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// drain stops accepting requests and waits for in-flight ones before the
// session reaper closes the remaining builder sessions.
func drain(ctx context.Context, srv shutdowner, stopReaper context.CancelFunc, workers *sync.WaitGroup, logger *zap.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	stopReaper()
	workers.Wait()
}

func buildSenders(cfg *config.Config, logger *zap.Logger) ([]port.ChannelSender, error) {
	var senders []port.ChannelSender

	switch cfg.Email.Provider {
	case "ses":
		sender, err := ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		senders = append(senders, sender)
	case "resend":
		senders = append(senders, resend.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Email.FromName))
	default:
		senders = append(senders, noop.NewNoopSender(domain.ChannelEmail, logger))
	}

	switch cfg.SMS.Provider {
	case "sqs":
		sender, err := sqs.NewSQSSender(cfg.SMS.Region, cfg.SMS.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQS sender: %w", err)
		}
		senders = append(senders, sender)
	default:
		senders = append(senders, noop.NewNoopSender(domain.ChannelSMS, logger))
	}

	logger.Info("delivery channels configured",
		zap.String("email", cfg.Email.Provider),
		zap.String("sms", cfg.SMS.Provider))
	return senders, nil
}
