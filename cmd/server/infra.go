package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"loankyc/internal/kyc/service"
	"loankyc/internal/kyc/store/snapshot"
	"loankyc/internal/platform/config"
	"loankyc/internal/platform/postgres"
	"loankyc/internal/platform/redis"
	audit "loankyc/pkg/platform/audit"
	"loankyc/pkg/platform/audit/publisher"
	kafkasink "loankyc/pkg/platform/audit/sink/kafka"
	auditmemory "loankyc/pkg/platform/audit/store/memory"
	auditpostgres "loankyc/pkg/platform/audit/store/postgres"
)

// infra holds the backing connections selected by configuration.
type infra struct {
	snapshots service.SnapshotStore
	audit     *publisher.Publisher

	redis *redis.Client
	db    *sql.DB
	kafka *kafkasink.Sink
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	in := &infra{}
	var auditStore audit.Store = auditmemory.NewInMemoryStore()

	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis())
		if err != nil {
			return nil, err
		}
		in.redis = client
		in.snapshots = snapshot.NewRedis(client.Client, snapshot.WithTTL(cfg.SnapshotTTL))
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxOpenConns)
		if err != nil {
			return nil, err
		}
		in.db = db
		snapshots := snapshot.NewPostgres(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			in.Close()
			return nil, fmt.Errorf("snapshot schema: %w", err)
		}
		events := auditpostgres.New(db)
		if err := events.EnsureSchema(ctx); err != nil {
			in.Close()
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		in.snapshots = snapshots
		auditStore = events
	default:
		in.snapshots = snapshot.NewInMemoryStore()
	}

	opts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(cfg.AuditBuffer),
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.kafka = sink
		if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
			in.Close()
			return nil, err
		}
		opts = append(opts, publisher.WithSinks(sink))
		log.Info("audit events mirrored to kafka", "topic", sink.Topic())
	}
	in.audit = publisher.NewPublisher(auditStore, opts...)
	return in, nil
}

// Health reports whether the configured backends are reachable.
func (in *infra) Health(ctx context.Context) error {
	if in.redis != nil {
		if err := in.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if in.db != nil {
		if err := in.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

// Close drains the audit buffer before the connections it writes to go away.
func (in *infra) Close() {
	if in.audit != nil {
		in.audit.Close()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
