package main

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	authService "cliquey/internal/auth/service"
	"cliquey/internal/auth/store/revocation"
	userStore "cliquey/internal/auth/store/user"
	invitationService "cliquey/internal/invitation/service"
	invitationStore "cliquey/internal/invitation/store"
	"cliquey/internal/platform/config"
	"cliquey/internal/platform/database"
	"cliquey/internal/platform/redis"
	profileService "cliquey/internal/profile/service"
	profileStore "cliquey/internal/profile/store"
	ratelimit "cliquey/internal/ratelimit/middleware"
	"cliquey/internal/ratelimit/store/bucket"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/audit/kafka"
	"cliquey/pkg/platform/audit/publisher"
	auditmemory "cliquey/pkg/platform/audit/store/memory"
	auditpostgres "cliquey/pkg/platform/audit/store/postgres"
	"cliquey/pkg/platform/circuit"
	"cliquey/pkg/platform/tx"
)

const (
	defaultTxTimeout = 5 * time.Second
	auditBufferSize  = 256
	trlPurgeInterval = 15 * time.Minute
	sinkCooldown     = 30 * time.Second
	bucketSweepEvery = 5 * time.Minute
)

// invitationRepository is what both the registration workflow and the issuing
// service need from the invitation store.
type invitationRepository interface {
	authService.InvitationLedger
	invitationService.Store
}

// backends holds the storage selected from configuration: Postgres when
// DATABASE_URL is set, otherwise process memory.
type backends struct {
	db          *sql.DB
	redis       *redis.Client
	users       authService.UserStore
	invitations invitationRepository
	profiles    profileService.Store
	trl         authService.RevocationList
	purger      revocationPurger
	runner      tx.Runner
	audit       *publisher.Publisher
	events      audit.Store
	sink        *kafka.Sink
	limiter     *ratelimit.Limiter
	localBucket *bucket.InMemoryBucketStore
}

type revocationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	var auditStore audit.Store
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.db = db
		b.users = userStore.NewPostgres(db)
		b.invitations = invitationStore.NewPostgres(db)
		b.profiles = profileStore.NewPostgres(db)
		// Row locks and single-statement updates carry the aggregate
		// invariants, so read committed is enough.
		b.runner = tx.NewPostgresRunner(db,
			tx.WithTimeout(defaultTxTimeout),
			tx.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelReadCommitted}),
		)
		auditStore = auditpostgres.New(db)
		logger.InfoContext(ctx, "using postgres stores")
	} else {
		b.users = userStore.New()
		b.invitations = invitationStore.NewInMemory()
		b.profiles = profileStore.NewInMemory()
		b.runner = tx.NewMemoryRunner()
		auditStore = auditmemory.NewInMemoryStore()
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.close()
		return nil, err
	}
	b.redis = client
	switch {
	case client != nil:
		b.trl = revocation.NewRedisTRL(client.Client)
		logger.InfoContext(ctx, "using redis revocation list")
	case b.db != nil:
		pg := revocation.NewPostgresTRL(b.db)
		b.trl = pg
		b.purger = pg
	default:
		b.trl = revocation.NewInMemoryTRL(nil)
	}

	// Rate limit counters are shared through Redis when available. The local
	// store serves alone otherwise and as fallback while Redis is failing.
	b.localBucket = bucket.NewInMemoryBucketStore()
	if client != nil {
		b.limiter = ratelimit.NewLimiter(bucket.NewRedisBucketStore(client.Client),
			ratelimit.WithFallback(b.localBucket),
			ratelimit.WithLimiterLogger(logger),
		)
	} else {
		b.limiter = ratelimit.NewLimiter(b.localBucket, ratelimit.WithLimiterLogger(logger))
	}

	opts := []publisher.Option{
		publisher.WithLogger(logger),
		publisher.WithAsyncBuffer(auditBufferSize),
	}
	if len(cfg.Audit.Brokers) > 0 {
		var dialOpts []kafka.DialOption
		if cfg.Audit.TopicPartitions > 0 {
			spec := kafka.TopicSpec{
				Partitions:        int32(cfg.Audit.TopicPartitions),
				ReplicationFactor: int16(cfg.Audit.TopicReplication),
			}
			if cfg.Audit.TopicRetention > 0 {
				spec.Retention = strconv.FormatInt(cfg.Audit.TopicRetention.Milliseconds(), 10)
			}
			dialOpts = append(dialOpts, kafka.WithTopicCreation(spec))
		}
		sink, err := kafka.Dial(ctx, cfg.Audit.Brokers, cfg.Audit.Topic, dialOpts...)
		if err != nil {
			b.close()
			return nil, err
		}
		b.sink = sink
		opts = append(opts,
			publisher.WithSink(sink),
			publisher.WithSinkBreaker(circuit.WithFailureThreshold(5), circuit.WithCooldown(sinkCooldown)),
		)
		logger.InfoContext(ctx, "audit events mirrored to kafka", "topic", cfg.Audit.Topic)
	}
	b.events = auditStore
	b.audit = publisher.NewPublisher(auditStore, opts...)
	return b, nil
}

// purgeRevocations deletes lapsed Postgres revocation rows until ctx ends.
// Redis and memory backends expire entries on their own.
func (b *backends) purgeRevocations(ctx context.Context, logger *slog.Logger) error {
	if b.purger == nil {
		return nil
	}
	ticker := time.NewTicker(trlPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := b.purger.PurgeExpired(ctx)
			if err != nil {
				logger.WarnContext(ctx, "revocation purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "purged expired revocations", "count", n)
			}
		}
	}
}

// sweepBuckets drops idle in-memory rate limit windows until ctx ends.
func (b *backends) sweepBuckets(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(bucketSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := b.localBucket.Sweep(); n > 0 {
				logger.DebugContext(ctx, "swept idle rate limit buckets", "count", n)
			}
		}
	}
}

func (b *backends) close() {
	if b.audit != nil {
		b.audit.Close()
	}
	if b.sink != nil {
		b.sink.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
