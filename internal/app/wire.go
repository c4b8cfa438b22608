package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/predictstack/indexer/internal/blob/s3"
	"github.com/predictstack/indexer/internal/cache/redis"
	"github.com/predictstack/indexer/internal/chainhook"
	"github.com/predictstack/indexer/internal/config"
	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/notify"
	"github.com/predictstack/indexer/internal/projection"
	"github.com/predictstack/indexer/internal/reconciler"
	"github.com/predictstack/indexer/internal/server"
	"github.com/predictstack/indexer/internal/server/handler"
	"github.com/predictstack/indexer/internal/server/ws"
	"github.com/predictstack/indexer/internal/service"
	"github.com/predictstack/indexer/internal/stacks"
	"github.com/predictstack/indexer/internal/store/postgres"
)

// Dependencies bundles everything App.Run needs to operate. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Projection *projection.Store
	Reconciler *reconciler.Reconciler
	Server     *server.Server

	// Optional components; nil when their backing service is disabled.
	WSHub    *ws.Hub
	Archiver *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Redis (optional: signal bus, rate limiter) ---
	var (
		bus     domain.SignalBus
		limiter domain.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus = redis.NewSignalBus(redisClient)
		limiter = redis.NewRateLimiter(redisClient)
	}

	// --- Postgres delivery store (optional: raw delivery retention) ---
	var deliveries domain.DeliveryStore
	if cfg.Archive.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deliveries = postgres.NewDeliveryStore(pgClient.Pool())
	}

	// --- S3 blob storage + archiver (optional) ---
	var archiver *s3blob.Archiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if cfg.Archive.Enabled && deliveries != nil {
			archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				deliveries,
				cfg.Archive.Retention.Duration,
				cfg.Archive.Interval.Duration,
				logger,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(cfg.Notify.Title, senders, logger)

	// --- Chain reader ---
	chainClient := stacks.NewClient(stacks.ClientConfig{
		APIURL:  cfg.Chain.APIURL,
		APIKey:  cfg.Chain.APIKey,
		Sender:  cfg.Chain.Sender,
		Timeout: cfg.Chain.Timeout.Duration,
	}, logger)
	reader := stacks.NewContractReader(chainClient, stacks.ReaderConfig{
		Address:        cfg.Chain.Address,
		RoundsContract: cfg.Chain.RoundsContract,
		PoolsContract:  cfg.Chain.PoolsContract,
	})

	// --- Projection and reconciler ---
	store := projection.NewStore()
	rec := reconciler.New(store, reader, bus, notifier, reconciler.Config{
		Interval:         cfg.Reconcile.Interval.Duration,
		FetchConcurrency: cfg.Reconcile.FetchConcurrency,
		Placeholders:     cfg.Reconcile.Placeholders,
	}, logger)

	// --- Services ---
	decoder := chainhook.NewDecoder(logger)
	ingest := service.NewIngestService(decoder, rec, deliveries, logger)
	queries := service.NewQueryService(store)

	// --- HTTP surface ---
	var hub *ws.Hub
	if bus != nil {
		hub = ws.NewHub(bus, logger)
	}
	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ChainhookSecret: cfg.Server.ChainhookSecret,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(queries),
		Chainhook: handler.NewChainhookHandler(ingest, logger),
		Rounds:    handler.NewRoundHandler(queries),
		Bets:      handler.NewBetHandler(queries),
		Pools:     handler.NewPoolHandler(queries),
	}, hub, limiter, logger)

	return &Dependencies{
		Projection: store,
		Reconciler: rec,
		Server:     srv,
		WSHub:      hub,
		Archiver:   archiver,
	}, cleanup, nil
}
