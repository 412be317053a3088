package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	httpapi "github.com/tixswap/tixswap/internal/api/http"
	"github.com/tixswap/tixswap/internal/application/availability"
	"github.com/tixswap/tixswap/internal/application/dispatch"
	"github.com/tixswap/tixswap/internal/application/negotiation"
	"github.com/tixswap/tixswap/internal/application/notification"
	"github.com/tixswap/tixswap/internal/application/purchase"
	"github.com/tixswap/tixswap/internal/config"
	domainListing "github.com/tixswap/tixswap/internal/domain/listing"
	domainNotification "github.com/tixswap/tixswap/internal/domain/notification"
	domainOffer "github.com/tixswap/tixswap/internal/domain/offer"
	domainPurchase "github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/domain/store"
	"github.com/tixswap/tixswap/internal/infrastructure/memory"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
	"github.com/tixswap/tixswap/internal/infrastructure/postgres"
	"github.com/tixswap/tixswap/internal/infrastructure/redisbus"
	"github.com/tixswap/tixswap/internal/infrastructure/seed"
	"github.com/tixswap/tixswap/internal/infrastructure/sse"
)

type repositories struct {
	txm           store.TxManager
	listings      domainListing.Repository
	offers        domainOffer.Repository
	purchases     domainPurchase.Repository
	notifications domainNotification.Repository
	close         func()
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	storeKind := pflag.String("store", "", "storage backend: postgres or memory (overrides config)")
	migrate := pflag.Bool("migrate", true, "apply schema migrations at startup (postgres only)")
	seedPath := pflag.String("seed", "", "YAML file of listings to create at startup")
	pflag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if *storeKind != "" {
		cfg.Store = *storeKind
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger = logger.Level(level)

	ctx := context.Background()
	repos, err := openStore(ctx, cfg, *migrate, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("store error")
	}
	defer repos.close()

	if *seedPath != "" {
		if err := seedListings(ctx, *seedPath, repos.listings, logger); err != nil {
			logger.Fatal().Err(err).Str("path", *seedPath).Msg("seed error")
		}
	} else if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("memory store has no listings; pass --seed to load some")
	}

	m := metrics.New()

	hub := sse.NewHub(cfg.StreamBuffer, logger)

	publishers := domainNotification.Publishers{hub}
	if cfg.RedisAddr != "" {
		client, err := redisbus.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis error")
		}
		defer client.Close()
		publishers = append(publishers, redisbus.NewPublisher(client, cfg.NotificationChannelPrefix))
	}

	fees, err := purchase.NewFeeCalculator(cfg.FeeExpression)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid fee expression")
	}

	// services
	gate := availability.NewGate(repos.listings, repos.purchases, repos.offers, logger)
	dispatcher := dispatch.NewDispatcher(repos.listings, repos.notifications, publishers, dispatch.Config{
		RelistOnCancel:      cfg.RelistOnCancel,
		NotificationRetries: cfg.NotificationRetries,
		RetryDelay:          cfg.NotificationRetryDelay,
	}, m, logger)
	purchaseSvc := purchase.NewService(repos.txm, repos.purchases, repos.listings, repos.offers, gate, fees, dispatcher, m, logger)
	negotiationSvc := negotiation.NewService(repos.txm, repos.offers, gate, purchaseSvc, dispatcher, cfg.MinProposalPrice, m, logger)
	notificationSvc := notification.NewService(repos.notifications, logger)

	// API server
	apiServer := httpapi.NewServer(gate, purchaseSvc, negotiationSvc, notificationSvc, hub, m, cfg.JWTSecret, cfg.RequestTimeout, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("store", cfg.Store).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	hub.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	logger.Info().Msg("http server stopped")
}

func seedListings(ctx context.Context, path string, repo domainListing.Repository, logger zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	listings, err := seed.LoadListings(ctx, f, repo, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info().Int("listings", len(listings)).Str("path", path).Msg("seeded listings")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger zerolog.Logger) (*repositories, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		st := memory.NewStore()
		return &repositories{
			txm:           st,
			listings:      st.Listings(),
			offers:        st.Offers(),
			purchases:     st.Purchases(),
			notifications: st.Notifications(),
			close:         func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &repositories{
		txm:           postgres.NewTxManager(pool),
		listings:      postgres.NewListingRepository(pool),
		offers:        postgres.NewOfferRepository(pool),
		purchases:     postgres.NewPurchaseRepository(pool),
		notifications: postgres.NewNotificationRepository(pool),
		close:         pool.Close,
	}, nil
}
