package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/event"
	"trivia-service/internal/generator"
	"trivia-service/internal/infra/memory"
	mongostore "trivia-service/internal/infra/mongo"
	"trivia-service/internal/infra/postgres"
	redisstore "trivia-service/internal/infra/redis"
	"trivia-service/internal/questionbank"
)

type dependencies struct {
	sessions  app.SessionRepository
	questions app.QuestionSource
	results   app.ResultRepository
	users     app.UserDirectory
	publisher app.EventPublisher

	closers []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDependencies picks a backend per concern from config: memory by default, Redis for sessions
// and pool caching, Postgres or Mongo for results, Postgres for the user directory.
func buildDependencies(ctx context.Context, cfg config.Config, log *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}
	fail := func(err error) (*dependencies, error) {
		deps.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.closers = append(deps.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		deps.closers = append(deps.closers, pool.Close)
	}

	if redisClient != nil {
		deps.sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	} else {
		deps.sessions = memory.NewSessionStore()
	}

	if pool != nil {
		deps.users = postgres.NewUserDirectory(pool)
	} else {
		deps.users = memory.NewDirectory()
	}

	questions, err := buildQuestionSource(cfg, pool, redisClient, log)
	if err != nil {
		return fail(err)
	}
	deps.questions = questions

	switch cfg.Quiz.ResultStore {
	case "memory":
		deps.results = memory.NewResultStore()
	case "postgres":
		if pool == nil {
			return fail(fmt.Errorf("result store postgres requires postgres.url"))
		}
		deps.results = postgres.NewResultStore(pool)
	case "mongo":
		if cfg.Mongo.URI == "" {
			return fail(fmt.Errorf("result store mongo requires mongo.uri"))
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fail(fmt.Errorf("connect mongo: %w", err))
		}
		deps.closers = append(deps.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		store := mongostore.NewResultStore(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		deps.results = store
	default:
		return fail(fmt.Errorf("unknown result store %q", cfg.Quiz.ResultStore))
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := event.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			// events are best effort; the quiz keeps working without a broker
			log.Warn("rabbitmq unavailable, result events disabled", zap.Error(err))
		} else {
			deps.publisher = publisher
			deps.closers = append(deps.closers, publisher.Close)
		}
	}

	log.Info("dependencies ready",
		zap.Bool("redis", redisClient != nil),
		zap.Bool("postgres", pool != nil),
		zap.String("question_source", cfg.Quiz.Source),
		zap.String("result_store", cfg.Quiz.ResultStore),
		zap.Bool("events", deps.publisher != nil),
	)
	return deps, nil
}

// buildQuestionSource returns the configured pool behind a TTL cache, falling back to the built-in pool.
func buildQuestionSource(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) (app.QuestionSource, error) {
	var loader memory.QuestionLoader
	switch cfg.Quiz.Source {
	case "static":
		return questionbank.Source{}, nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("question source postgres requires postgres.url")
		}
		loader = postgres.NewQuestionLoader(pool)
	case "generator":
		loader = generator.NewClient(generator.Config{
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey,
			Model:   cfg.Generator.Model,
			Topic:   cfg.Generator.Topic,
			Count:   cfg.Generator.Count,
			Timeout: config.TTLDuration(cfg.Generator.Timeout, 20*time.Second),
		}, log)
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Quiz.Source)
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var cached app.QuestionSource
	if redisClient != nil {
		cached = redisstore.NewQuestionCache(redisClient, loader, ttl)
	} else {
		cached = memory.NewQuestionCache(loader, ttl)
	}
	return app.NewFallbackSource(cached, questionbank.Source{}, log), nil
}
