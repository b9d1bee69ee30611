package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/notifications"
	appoutbox "rentalhub/internal/app/outbox"
	"rentalhub/internal/app/policies"
	"rentalhub/internal/app/uow"
	domainlistings "rentalhub/internal/domain/listings"
	"rentalhub/internal/infra/broker/kafka"
	"rentalhub/internal/infra/broker/rabbitmq"
	rediscache "rentalhub/internal/infra/cache/redis"
	"rentalhub/internal/infra/config"
	mongodb "rentalhub/internal/infra/db/mongo"
	"rentalhub/internal/infra/db/postgres"
	"rentalhub/internal/infra/inbox"
	"rentalhub/internal/infra/messaging"
	"rentalhub/internal/infra/obs"
	infraoutbox "rentalhub/internal/infra/outbox"
	"rentalhub/internal/infra/storage/memory"
)

const notificationsConsumer = "rentalhub-notifications"

// listingSaver is the write side of a catalog, used for fixtures.
type listingSaver interface {
	Save(ctx context.Context, l *domainlistings.Listing) error
}

type backend struct {
	uow         uow.UoWFactory
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       notifications.Inbox
	catalog     listingSaver
	checks      []obs.Check
	background  map[string]func(context.Context) error
	closers     []func()
}

func (b *backend) onClose(fn func()) {
	b.closers = append(b.closers, fn)
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects storage, the optional redis cache and the outbox relay
// for the configured STORAGE_BACKEND and BROKER.
func openBackend(ctx context.Context, cfg config.Config, dispatcher *notifications.Dispatcher, logger *slog.Logger) (_ *backend, err error) {
	be := &backend{background: map[string]func(context.Context) error{}}
	defer func() {
		if err != nil {
			be.close()
		}
	}()

	var (
		redisClient *goredis.Client
		locker      uow.ListingLocker
	)
	if cfg.LockBackend == config.LockRedis {
		client, err := rediscache.New(ctx, rediscache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		redisClient = client
		locker = rediscache.NewLocker(client)
		be.onClose(func() { _ = client.Close() })
		be.checks = append(be.checks, obs.Check{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }})
		logger.Info("redis listing locks enabled", "addr", cfg.RedisAddr)
	}

	var relayStore infraoutbox.Store
	switch cfg.StorageBackend {
	case config.StorageMemory:
		factory := memory.NewFactory(memory.NewListingCatalog(), memory.NewBookingStore())
		if locker != nil {
			factory = factory.WithLocker(locker)
		}
		be.uow = factory
		be.catalog = factory.Catalog()
		be.outbox = memory.NewOutbox(dispatcher.DeliverRecord, logger)
		be.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)

	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		be.onClose(func() { _ = client.Close(context.Background()) })
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		store, err := infraoutbox.NewMongoStore(ctx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("mongo outbox: %w", err)
		}
		factory := mongodb.NewFactory(client.DB, locker)
		be.uow = factory
		be.catalog = factory.Listings
		be.outbox = store
		relayStore = store
		if redisClient == nil {
			idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
			if err != nil {
				return nil, fmt.Errorf("mongo idempotency: %w", err)
			}
			be.idempotency = idem
			in, err := inbox.NewStore(ctx, client.DB, notificationsConsumer)
			if err != nil {
				return nil, fmt.Errorf("mongo inbox: %w", err)
			}
			be.inbox = in
		}
		be.checks = append(be.checks, obs.Check{Name: "mongo", Ping: client.Ping})

	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		be.onClose(func() { closeGorm(db) })
		if err := postgres.Migrate(db); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		store := postgres.NewOutboxStore(db)
		be.uow = postgres.NewFactory(db, locker)
		be.catalog = postgres.NewGormListingCatalog(db)
		be.outbox = store
		relayStore = store
		if redisClient == nil {
			// No idempotency table in postgres; keys survive only this process.
			be.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		}
		be.checks = append(be.checks, obs.Check{Name: "postgres", Ping: func(ctx context.Context) error { return postgres.Ping(ctx, db) }})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if redisClient != nil {
		be.idempotency = rediscache.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
		be.inbox = rediscache.NewInbox(redisClient, notificationsConsumer, cfg.IdempotencyTTL)
	}

	if relayStore != nil {
		if err := be.startRelay(cfg, relayStore, dispatcher, logger); err != nil {
			return nil, err
		}
	}
	return be, nil
}

// startRelay wires the outbox worker to the configured broker and, for
// brokers, the consumer that turns events back into notifications.
func (be *backend) startRelay(cfg config.Config, store infraoutbox.Store, dispatcher *notifications.Dispatcher, logger *slog.Logger) error {
	topic := infraoutbox.TopicFor(cfg.KafkaTopicPrefix, "booking.requested")
	worker := &infraoutbox.Worker{
		Store:       store,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          workerID(),
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}

	switch cfg.Broker {
	case config.BrokerKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		be.onClose(func() { _ = producer.Close() })
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.NotificationHandler{Dispatcher: dispatcher}, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		be.onClose(func() { _ = consumer.Close() })
		worker.Producer = producer
		be.background["kafka-consumer"] = func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		}

	case config.BrokerRabbitMQ:
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq publisher: %w", err)
		}
		be.onClose(func() { _ = publisher.Close() })
		consumer := &rabbitmq.Consumer{
			URL:        cfg.RabbitMQURL,
			Queues:     []string{topic},
			Prefetch:   16,
			Dispatcher: dispatcher,
			Logger:     logger,
		}
		worker.Producer = publisher
		be.background["rabbitmq-consumer"] = consumer.Run

	default:
		worker.Producer = infraoutbox.DirectProducer{Dispatcher: dispatcher}
	}

	be.background["outbox-worker"] = worker.Run
	logger.Info("outbox relay configured", "broker", cfg.Broker, "topic", topic)
	return nil
}

// buildNotifier returns the messaging collaborator selected by NOTIFIER.
func buildNotifier(ctx context.Context, cfg config.Config, logger *slog.Logger) (policies.Notifier, func(), error) {
	switch cfg.Notifier {
	case config.NotifierGRPC:
		n, err := messaging.NewGRPCNotifier(ctx, messaging.Config{
			Addr:        cfg.MessagingGRPCAddr,
			DialTimeout: cfg.MessagingGRPCDial,
			CallTimeout: cfg.MessagingGRPCTime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("messaging grpc: %w", err)
		}
		return n, func() { _ = n.Close() }, nil
	case config.NotifierScylla:
		session, err := messaging.NewScyllaSession(messaging.ScyllaConfig{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    cfg.ScyllaKeyspace,
			Consistency: cfg.ScyllaConsistency,
			Timeout:     cfg.ScyllaTimeout,
			Username:    cfg.ScyllaUsername,
			Password:    cfg.ScyllaPassword,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		n := messaging.NewScyllaNotifier(session)
		return n, func() { _ = n.Close() }, nil
	case config.NotifierLog:
		return messaging.LogNotifier{Logger: logger}, func() {}, nil
	default:
		return nil, nil, errors.New("unknown notifier " + cfg.Notifier)
	}
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "rentalhub"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}
