package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/printworks/api/internal/gateway"
	"github.com/printworks/api/internal/handlers"
	"github.com/printworks/api/internal/notifications"
	"github.com/printworks/api/internal/platform/config"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
	"github.com/printworks/api/internal/platform/observability"
	"github.com/printworks/api/internal/platform/secrets"
	platformstorage "github.com/printworks/api/internal/platform/storage"
	firestoreRepo "github.com/printworks/api/internal/repositories/firestore"
	"github.com/printworks/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	secretResolver, err := secrets.NewResolver(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(os.Getenv("API_FIRESTORE_PROJECT_ID")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := secretResolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(secretResolver))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Fatal("failed to initialise metrics", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	quoteRepo, err := firestoreRepo.NewQuoteRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise quote repository", zap.Error(err))
	}
	promotionRepo, err := firestoreRepo.NewPromotionRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise promotion repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	ledgerRepo, err := firestoreRepo.NewPaymentLedgerRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise payment ledger repository", zap.Error(err))
	}
	rateWindowRepo, err := firestoreRepo.NewRateWindowRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise rate window repository", zap.Error(err))
	}

	notifier, pubsubClient, err := newNotifier(ctx, logger, cfg.Notifications)
	if err != nil {
		logger.Fatal("failed to initialise notification publisher", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	urlResolver, err := newURLResolver(logger, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise upload url resolver", zap.Error(err))
	}

	verifier, err := gateway.NewVerifier(cfg.Gateway.WebhookSecret)
	if err != nil {
		logger.Fatal("failed to initialise webhook verifier", zap.Error(err))
	}

	promotionService, err := services.NewPromotionService(services.PromotionServiceDeps{
		Promotions: promotionRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise promotion service", zap.Error(err))
	}

	taxPolicy := services.RateTaxPolicy{Percent: cfg.Pricing.TaxPercent}
	shippingPolicy, err := shippingPolicyFromConfig(cfg.Pricing)
	if err != nil {
		logger.Fatal("failed to parse shipping configuration", zap.Error(err))
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Promotions: promotionService,
		Tax:        taxPolicy,
		Shipping:   shippingPolicy,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	sequenceService, err := services.NewSequenceService(services.SequenceServiceDeps{
		Counters:  counterRepo,
		Prefix:    cfg.Sequence.Prefix,
		MaxPerDay: cfg.Sequence.MaxPerDay,
	})
	if err != nil {
		logger.Fatal("failed to initialise sequence service", zap.Error(err))
	}

	rateLimiter, err := services.NewRateLimiter(services.RateLimiterDeps{
		Windows: rateWindowRepo,
		Window:  cfg.RateLimit.Window,
		Limit:   cfg.RateLimit.MaxRequests,
	})
	if err != nil {
		logger.Fatal("failed to initialise rate limiter", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Quotes: quoteRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	quoteService, err := services.NewQuoteService(services.QuoteServiceDeps{
		Quotes:     quoteRepo,
		Catalog:    catalogRepo,
		Promotions: promotionRepo,
		Evaluator:  promotionService,
		Pricing:    pricingEngine,
		Sequence:   sequenceService,
		Limiter:    rateLimiter,
		Tax:        taxPolicy,
		Shipping:   shippingPolicy,
		Notifier:   notifier,
		URLs:       urlResolver,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise quote service", zap.Error(err))
	}

	reconciler, err := services.NewPaymentReconciler(services.PaymentReconcilerDeps{
		Verifier:   verifier,
		Ledger:     ledgerRepo,
		Orders:     orderService,
		Promotions: promotionService,
		Notifier:   notifier,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment reconciler", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(firestoreReadiness(firestoreClient))
	quoteHandlers := handlers.NewQuoteHandlers(quoteService)
	orderHandlers := handlers.NewOrderHandlers(orderService)
	webhookHandlers := handlers.NewWebhookHandlers(reconciler, cfg.Gateway.SignatureHeader)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithQuoteRoutes(quoteHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("printworks api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newNotifier selects the Pub/Sub publisher when a topic is configured and a
// log-only publisher otherwise. The returned client is nil in log-only mode.
func newNotifier(ctx context.Context, logger *zap.Logger, cfg config.NotificationConfig) (services.Notifier, *pubsub.Client, error) {
	topicID := strings.TrimSpace(cfg.Topic)
	if topicID == "" {
		logger.Warn("notifications topic not configured; events will only be logged")
		publisher, err := notifications.NewLogPublisher(logger.Named("notifications"))
		if err != nil {
			return nil, nil, err
		}
		return publisher, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	publisher, err := notifications.NewPubSubPublisher(
		client.Topic(topicID),
		notifications.WithPublishWait(cfg.PublishWait),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, client, nil
}

// newURLResolver mints signed download URLs when a signer key is available
// and falls back to public object URLs otherwise.
func newURLResolver(logger *zap.Logger, cfg config.StorageConfig) (services.URLResolver, error) {
	bucket := strings.TrimSpace(cfg.UploadsBucket)
	if bucket == "" {
		return nil, errors.New("storage uploads bucket is required")
	}

	keyFile := strings.TrimSpace(cfg.SignerKeyFile)
	if keyFile == "" {
		logger.Warn("storage signer key not configured; serving public object urls",
			zap.String("bucket", bucket))
		return platformstorage.NewPublicResolver(bucket)
	}

	signer, err := platformstorage.NewServiceAccountSignerFromFile(keyFile)
	if err != nil {
		return nil, err
	}
	return platformstorage.NewResolver(bucket, signer, platformstorage.WithExpiry(cfg.SignedURLTTL))
}

func shippingPolicyFromConfig(cfg config.PricingConfig) (services.FlatShippingPolicy, error) {
	byMethod := make(map[string]int64, len(cfg.ShippingByMode))
	for method, raw := range cfg.ShippingByMode {
		amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return services.FlatShippingPolicy{}, fmt.Errorf("shipping amount for %q: %w", method, err)
		}
		if amount < 0 {
			return services.FlatShippingPolicy{}, fmt.Errorf("shipping amount for %q is negative", method)
		}
		byMethod[strings.ToLower(strings.TrimSpace(method))] = amount
	}
	return services.FlatShippingPolicy{
		ByMethod:        byMethod,
		Default:         cfg.ShippingFlat,
		FreeShippingMin: cfg.FreeShippingMin,
	}, nil
}

func firestoreReadiness(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(checkCtx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
