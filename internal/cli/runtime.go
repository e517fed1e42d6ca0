package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"tequest-attempts/internal/app"
	"tequest-attempts/internal/config"
	"tequest-attempts/internal/domain"
	"tequest-attempts/internal/events"
	"tequest-attempts/internal/infra/memory"
	"tequest-attempts/internal/infra/postgres"
	infraredis "tequest-attempts/internal/infra/redis"
)

// runtime is the wired service graph shared by the server and admin commands.
type runtime struct {
	service    *app.AttemptService
	feed       *app.LeaderboardFeed
	dispatcher *events.Dispatcher
	closers    []func()
}

// newRuntime wires Postgres when a URL is configured (else the in-memory
// store with sample quizzes) and Redis when an address is configured (else
// in-process caching and log sinks).
func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var store app.AttemptStore = memory.NewAttemptStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect catalog pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		loader = postgres.NewQuizLoader(pool)

		db := postgres.OpenDB(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		store = postgres.NewAttemptStore(db, config.TTLDuration(cfg.Postgres.LockTimeout, 5*time.Second))
	} else {
		log.Printf("postgres url not configured, using in-memory store with sample quizzes")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	rt.dispatcher = events.NewDispatcher(events.Options{
		Buffer:         cfg.Events.Buffer,
		Workers:        cfg.Events.Workers,
		HandlerTimeout: config.TTLDuration(cfg.Events.HandlerTimeout, 5*time.Second),
	})

	leaderboard := app.NewLeaderboardAggregator(store, cfg.Leaderboard.PageSize)
	rt.service = app.NewAttemptService(quizRepo, store, leaderboard, rt.dispatcher)
	rt.feed = app.NewLeaderboardFeed(rt.service, cfg.Leaderboard.PageSize)

	var audit events.AuditSink = events.LogAuditSink{}
	var notifier events.Notifier = events.LogNotifier{From: cfg.Events.FromAddress}
	if redisClient != nil {
		audit = infraredis.NewAuditStream(redisClient, cfg.Events.AuditStream, cfg.Events.AuditMaxLen)
		notifier = infraredis.NewNotificationOutbox(redisClient, cfg.Events.NotificationQueue, cfg.Events.FromAddress)
	}
	rt.dispatcher.Register("audit", events.AuditHandler(audit))
	rt.dispatcher.Register("notify", events.NotifyHandler(notifier))
	rt.dispatcher.Register("feed", events.HandlerFunc(func(ctx context.Context, event domain.Event) error {
		if event.Action != domain.ActionAttemptFinalized {
			return nil
		}
		return rt.feed.Refresh(ctx, event.QuizID)
	}))
	return rt, nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Close drains pending events and releases connections in reverse order.
func (rt *runtime) Close() {
	if rt.dispatcher != nil {
		if err := rt.dispatcher.Close(); err != nil {
			log.Printf("events: close dispatcher: %v", err)
		}
		if n := rt.dispatcher.Dropped(); n > 0 {
			log.Printf("events: %d events dropped", n)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
