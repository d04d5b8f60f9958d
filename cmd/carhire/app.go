package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	bookingsapp "carhire/internal/app/handlers/bookings"
	fleetapp "carhire/internal/app/handlers/fleet"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/middleware"
	appoutbox "carhire/internal/app/outbox"
	"carhire/internal/app/queries"
	"carhire/internal/app/uow"
	"carhire/internal/domain/availability"
	domainfleet "carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/infra/backend"
	"carhire/internal/infra/broker/kafka"
	"carhire/internal/infra/config"
	mongostore "carhire/internal/infra/db/mongo"
	ginserver "carhire/internal/infra/http/gin"
	"carhire/internal/infra/inbox"
	"carhire/internal/infra/obs"
	outboxstore "carhire/internal/infra/outbox"
	"carhire/internal/infra/security"
	"carhire/internal/infra/storage/memory"
)

const (
	eventSource   = "carhire"
	maxPhotoBytes = 10 << 20
)

type backgroundTask struct {
	name string
	run  func(ctx context.Context) error
}

type application struct {
	handlers   ginserver.Handlers
	health     obs.HealthHandlers
	background []backgroundTask
}

// storage is the persistence selected by configuration: Mongo when
// configured, in-memory otherwise.
type storage struct {
	factory     uow.Factory
	table       pricing.TableRepository
	config      pricing.ConfigRepository
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Outbox
}

func buildApplication(ctx context.Context, cfg config.Config, b *backends, logger *slog.Logger) (application, error) {
	var app application

	cars := loadFixtureCars(cfg.CarsFixtures, logger)
	store, err := buildStorage(ctx, cfg, b, cars, logger)
	if err != nil {
		return app, err
	}
	if worker := outboxWorker(cfg, b, store, logger); worker != nil {
		app.background = append(app.background, backgroundTask{name: "outbox worker", run: worker.Run})
	}

	var priceCache pricing.Cache = memory.NewPriceCache(cfg.PriceCacheTTL)
	if b.redis != nil {
		priceCache = b.redis
	}

	// The local engine answers the backend endpoints. It never asks the
	// calculated tier so two chained instances cannot loop.
	localCars := support.RepositoryCars{Factory: store.factory}
	localExact := &pricing.CachedExactLookup{Next: pricing.TableLookup{Table: store.table}, Cache: priceCache, Logger: logger}
	localEngine := &pricing.Engine{
		Exact:         localExact,
		Config:        store.config,
		LookupTimeout: cfg.PricingLookupTimeout,
		Logger:        logger,
	}

	engine := localEngine
	var carSource support.CarSource = localCars
	if cfg.PricingSource == config.PricingSourceRemote {
		client := backend.NewClient(cfg.PricingBackendURL, cfg.PricingLookupTimeout, logger)
		// Remote prices own the cache; local table hits are cheap.
		localExact.Cache = nil
		engine = &pricing.Engine{
			Exact:         &pricing.CachedExactLookup{Next: client, Cache: priceCache, Logger: logger},
			Calculated:    client,
			Config:        pricing.ConfigChain{client, store.config},
			LookupTimeout: cfg.PricingLookupTimeout,
			Logger:        logger,
		}
		carSource = support.FallbackCars{Primary: client, Secondary: localCars, Logger: logger}
		logger.Info("remote pricing source configured", "url", cfg.PricingBackendURL)
	}

	checker := availability.NewChecker(logger)
	recorder := appoutbox.Recorder{Outbox: store.outbox, Encoder: appoutbox.JSONEventEncoder{}}

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[quotes.ListCarsQuery, dto.CarCollection](queryBus, quotes.ListCarsQuery{}.Key(), &quotes.ListCarsHandler{Cars: carSource})
	queries.RegisterHandler[quotes.GetCarQuery, dto.Car](queryBus, quotes.GetCarQuery{}.Key(), &quotes.GetCarHandler{Cars: carSource})
	queries.RegisterHandler[quotes.CarAvailabilityQuery, dto.Availability](queryBus, quotes.CarAvailabilityQuery{}.Key(), &quotes.CarAvailabilityHandler{
		Cars:    carSource,
		Checker: checker,
	})
	queries.RegisterHandler[quotes.SearchCarsQuery, dto.SearchResult](queryBus, quotes.SearchCarsQuery{}.Key(), &quotes.SearchCarsHandler{
		Logger:      logger,
		Cars:        carSource,
		Pricing:     engine,
		Checker:     checker,
		Concurrency: cfg.SearchConcurrency,
	})
	queries.RegisterHandler[quotes.QuoteCarQuery, dto.QuoteResult](queryBus, quotes.QuoteCarQuery{}.Key(), &quotes.QuoteCarHandler{
		Logger:  logger,
		Cars:    carSource,
		Pricing: engine,
		Checker: checker,
	})
	queries.RegisterHandler[quotes.ExactPriceQuery, dto.ExactPriceResponse](queryBus, quotes.ExactPriceQuery{}.Key(), &quotes.ExactPriceHandler{Lookup: localExact})
	queries.RegisterHandler[quotes.CalculatePriceQuery, dto.CalculatedPriceResponse](queryBus, quotes.CalculatePriceQuery{}.Key(), &quotes.CalculatePriceHandler{
		Cars:    localCars,
		Pricing: localEngine,
	})
	queries.RegisterHandler[quotes.PricingConfigQuery, pricing.Config](queryBus, quotes.PricingConfigQuery{}.Key(), &quotes.PricingConfigHandler{Source: localEngine})
	queries.RegisterHandler[quotes.AvailabilitySnapshotQuery, []dto.AvailabilitySnapshot](queryBus, quotes.AvailabilitySnapshotQuery{}.Key(), &quotes.AvailabilitySnapshotHandler{Cars: localCars})
	queries.RegisterHandler[bookingsapp.GetBookingQuery, dto.Booking](queryBus, bookingsapp.GetBookingQuery{}.Key(), &bookingsapp.GetBookingHandler{Factory: store.factory})
	queries.RegisterHandler[bookingsapp.ListBookingsQuery, dto.BookingCollection](queryBus, bookingsapp.ListBookingsQuery{}.Key(), &bookingsapp.ListBookingsHandler{Factory: store.factory})

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingsapp.CreateBookingCommand, *dto.Booking](commandBus, bookingsapp.CreateBookingCommand{}.Key(), &bookingsapp.CreateBookingHandler{
		Logger:   logger,
		Factory:  store.factory,
		Pricing:  engine,
		Checker:  checker,
		Recorder: recorder,
	})
	commands.RegisterHandler[bookingsapp.UpdateBookingStatusCommand, *dto.Booking](commandBus, bookingsapp.UpdateBookingStatusCommand{}.Key(), &bookingsapp.UpdateBookingStatusHandler{
		Logger:   logger,
		Recorder: recorder,
	})
	commands.RegisterHandler[bookingsapp.DeleteBookingCommand, *dto.BookingDeleted](commandBus, bookingsapp.DeleteBookingCommand{}.Key(), &bookingsapp.DeleteBookingHandler{
		Logger:   logger,
		Recorder: recorder,
	})
	photoHandler := &fleetapp.UploadPhotoHandler{Logger: logger, Recorder: recorder}
	if b.photos != nil {
		photoHandler.Uploader = b.photos
	}
	commands.RegisterHandler[fleetapp.UploadPhotoCommand, *dto.Car](commandBus, fleetapp.UploadPhotoCommand{}.Key(), photoHandler)
	commands.RegisterHandler[fleetapp.UpdateMonthlyPricingCommand, *dto.Car](commandBus, fleetapp.UpdateMonthlyPricingCommand{}.Key(), &fleetapp.UpdateMonthlyPricingHandler{
		Logger:   logger,
		Recorder: recorder,
		Cache:    priceCache,
	})
	commands.RegisterHandler[fleetapp.SetManualStatusCommand, *dto.Car](commandBus, fleetapp.SetManualStatusCommand{}.Key(), &fleetapp.SetManualStatusHandler{
		Logger:   logger,
		Recorder: recorder,
	})
	commands.RegisterHandler[fleetapp.AddBlockCommand, *dto.DateRange](commandBus, fleetapp.AddBlockCommand{}.Key(), &fleetapp.AddBlockHandler{Recorder: recorder})
	commands.RegisterHandler[fleetapp.RemoveBlockCommand, *dto.Car](commandBus, fleetapp.RemoveBlockCommand{}.Key(), &fleetapp.RemoveBlockHandler{Recorder: recorder})
	commands.RegisterHandler[fleetapp.UpdatePricingConfigCommand, *pricing.Config](commandBus, fleetapp.UpdatePricingConfigCommand{}.Key(), &fleetapp.UpdatePricingConfigHandler{Logger: logger})
	commands.RegisterHandler[fleetapp.UpsertPriceTableCommand, *dto.PriceTableResult](commandBus, fleetapp.UpsertPriceTableCommand{}.Key(), &fleetapp.UpsertPriceTableHandler{
		Logger: logger,
		Cache:  priceCache,
	})
	commands.RegisterHandler[fleetapp.InvalidatePriceCacheCommand, *dto.CacheInvalidated](commandBus, fleetapp.InvalidatePriceCacheCommand{}.Key(), &fleetapp.InvalidatePriceCacheHandler{Cache: priceCache})

	validator := middleware.NewStructValidator()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Idempotency(store.idempotency, middleware.IdempotencyOptions{TTL: cfg.IdempotencyTTL}),
		middleware.OutboxFlush(store.outbox, logger),
		middleware.Transaction(store.factory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus, middleware.QueryValidation(validator))

	if len(cfg.KafkaBrokers) > 0 {
		task, err := cacheInvalidationConsumer(ctx, cfg, b, priceCache, logger)
		if err != nil {
			return app, err
		}
		app.background = append(app.background, task)
	}

	app.handlers = ginserver.Handlers{
		Cars:     ginserver.CarHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Bookings: ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
		Backend:  ginserver.PricingBackendHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Admin: ginserver.AdminHandler{
			Commands:      commandBusWithMiddleware,
			Queries:       queryBusWithMiddleware,
			Logger:        logger,
			MaxPhotoBytes: maxPhotoBytes,
		},
	}
	if cfg.AdminKeyHash == "" {
		logger.Warn("ADMIN_KEY_HASH not set, admin endpoints disabled")
	} else {
		app.handlers.AdminGuard = ginserver.AdminGuard{Key: security.AdminKey{Hash: cfg.AdminKeyHash}, Logger: logger}.Handle
	}
	app.health = healthChecks(b)
	return app, nil
}

func buildStorage(ctx context.Context, cfg config.Config, b *backends, cars []*domainfleet.Car, logger *slog.Logger) (storage, error) {
	if b.mongo == nil {
		factory := memory.NewFactory(memory.NewCarRepository(cars...), pricing.DefaultConfig())
		box := memory.NewOutbox()
		box.TopicPrefix = cfg.KafkaTopicPrefix
		box.Source = eventSource
		box.Logger = logger
		if b.producer != nil {
			box.Producer = b.producer
		}
		logger.Info("using in-memory storage", "cars", len(cars))
		return storage{
			factory:     factory,
			table:       factory.TableRepo,
			config:      factory.ConfigRepo,
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			outbox:      box,
		}, nil
	}

	db := b.mongo.DB
	inserted, err := mongostore.NewCarRepository(db).Seed(ctx, cars)
	if err != nil {
		return storage{}, fmt.Errorf("seed cars: %w", err)
	}
	if inserted > 0 {
		logger.Info("car fixtures imported", "inserted", inserted)
	}
	if created, err := mongostore.NewConfigRepository(db).EnsureDefault(ctx, pricing.DefaultConfig()); err != nil {
		return storage{}, fmt.Errorf("seed pricing config: %w", err)
	} else if created {
		logger.Info("default pricing config stored")
	}
	idem, err := mongostore.NewIdempotencyStore(ctx, db, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, err
	}
	factory := mongostore.NewFactory(db)
	return storage{
		factory:     factory,
		table:       factory.TableRepo,
		config:      factory.ConfigRepo,
		idempotency: idem,
		outbox:      outboxstore.NewStore(db),
	}, nil
}

// outboxWorker publishes the Mongo outbox. The in-memory outbox publishes on
// flush and needs no worker.
func outboxWorker(cfg config.Config, b *backends, store storage, logger *slog.Logger) *outboxstore.Worker {
	queue, ok := store.outbox.(*outboxstore.Store)
	if !ok {
		return nil
	}
	if b.producer == nil {
		logger.Warn("KAFKA_BROKERS not set, outbox events stay queued")
		return nil
	}
	return &outboxstore.Worker{
		Store:       queue,
		Producer:    b.producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      eventSource,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
}

func cacheInvalidationConsumer(ctx context.Context, cfg config.Config, b *backends, cache pricing.Cache, logger *slog.Logger) (backgroundTask, error) {
	handler := kafka.CloudEventHandler{
		Next:   fleetapp.CacheInvalidator{Cache: cache, Logger: logger},
		Logger: logger,
	}
	if b.mongo != nil {
		store, err := inbox.NewStore(ctx, b.mongo.DB, cfg.KafkaGroupID, cfg.IdempotencyTTL)
		if err != nil {
			return backgroundTask{}, err
		}
		handler.Inbox = store
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, handler, logger)
	if err != nil {
		return backgroundTask{}, fmt.Errorf("kafka consumer: %w", err)
	}
	topic := appoutbox.TopicFor(cfg.KafkaTopicPrefix, domainfleet.EventPricingUpdated)
	return backgroundTask{
		name: "price cache consumer",
		run: func(ctx context.Context) error {
			defer consumer.Close()
			return consumer.Run(ctx, []string{topic})
		},
	}, nil
}

func healthChecks(b *backends) obs.HealthHandlers {
	checks := make(map[string]obs.Check)
	if b.mongo != nil {
		checks["mongo"] = b.mongo.Ping
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Ping
	}
	if b.photos != nil {
		checks["s3"] = b.photos.Ping
	}
	return obs.HealthHandlers{Checks: checks}
}

func loadFixtureCars(path string, logger *slog.Logger) []*domainfleet.Car {
	if path == "" {
		return nil
	}
	cars, err := memory.LoadCars(path, logger)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("car fixtures file not found, skipping", "path", path)
			return nil
		}
		logger.Warn("car fixtures load failed", "error", err, "path", path)
		return nil
	}
	logger.Info("car fixtures loaded", "path", path, "cars", len(cars))
	return cars
}
