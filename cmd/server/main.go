package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "kycflow/internal/jwt_token"
	"kycflow/internal/kyc/agent"
	"kycflow/internal/kyc/events"
	"kycflow/internal/kyc/handler"
	kycmetrics "kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/replay"
	"kycflow/internal/kyc/service"
	"kycflow/internal/kyc/storage"
	"kycflow/internal/kyc/store"
	"kycflow/internal/platform/config"
	"kycflow/internal/platform/httpserver"
	"kycflow/internal/platform/kafka"
	"kycflow/internal/platform/logger"
	platformmetrics "kycflow/internal/platform/metrics"
	"kycflow/internal/platform/middleware"
	"kycflow/internal/platform/postgres"
	platformredis "kycflow/internal/platform/redis"
	"kycflow/pkg/platform/circuit"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
	"kycflow/pkg/platform/middleware/requesttime"
)

const (
	shutdownTimeout = 10 * time.Second
	jwtIssuer       = "kycflow"
	jwtAudience     = "kycflow-reviewers"
	topicPartitions = 3
	topicReplicas   = 1
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/kyc.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// deps are the long-lived resources main closes on exit.
type deps struct {
	db    *sql.DB
	redis *platformredis.Client
	kafka *kgo.Client
	gcs   *gcs.Client
}

func (d *deps) close() {
	if d.kafka != nil {
		d.kafka.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.gcs != nil {
		_ = d.gcs.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	d := &deps{}
	defer d.close()

	reg := platformmetrics.NewRegistry()
	m := kycmetrics.New(reg)

	st, tx, err := openStore(ctx, cfg, log, d)
	if err != nil {
		return err
	}

	files, err := openStorage(ctx, cfg, d)
	if err != nil {
		return err
	}

	bus := events.NewBus(events.WithLogger(log), events.WithMetrics(m))
	bus.Subscribe(events.NewNotifier(log))
	if d.kafka, err = kafka.NewClient(cfg.Kafka); err != nil {
		return err
	}
	if d.kafka != nil {
		if err := kafka.EnsureTopic(ctx, d.kafka, cfg.Kafka.Topic, topicPartitions, topicReplicas); err != nil {
			return err
		}
		bus.Subscribe(events.NewKafkaSink(d.kafka, cfg.Kafka.Topic))
		log.Info("publishing lifecycle events to kafka", "topic", cfg.Kafka.Topic)
	}

	breaker := circuit.New("agent",
		circuit.WithFailureThreshold(cfg.Agent.FailureThreshold),
		circuit.WithCooldown(cfg.Agent.Cooldown),
	)
	agentClient := agent.New(cfg.Agent.BaseURL, cfg.Agent.Timeout,
		agent.WithBreaker(breaker),
		agent.WithLogger(log),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithEventPublisher(bus),
		service.WithAgentTimeout(cfg.Agent.Timeout),
		service.WithWebhookAuth(cfg.Webhook.Secret, cfg.Webhook.RequireSignature),
	}
	if d.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return err
	}
	if d.redis != nil {
		opts = append(opts, service.WithReplayGuard(replay.NewGuard(d.redis, cfg.Redis.ReplayTTL)))
		log.Info("webhook replay guard enabled", "ttl", cfg.Redis.ReplayTTL.String())
	}
	if !cfg.Webhook.RequireSignature {
		log.Warn("unsigned webhook deliveries are accepted")
	}
	svc := service.New(st, tx, agentClient, files, opts...)

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer, jwtAudience)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Handle("/metrics", platformmetrics.Handler(reg))
	r.Get("/healthz", healthz(d))
	handler.New(svc, log, middleware.RequireReviewer(jwt, log)).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting kycflow", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// openStore picks PostgreSQL when DATABASE_URL is set and the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger, d *deps) (service.Store, service.CaseStoreTx, error) {
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		st := store.NewInMemory()
		return st, service.NewKeyedTx(st, cfg.Tx.Timeout), nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	d.db = db
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, nil, err
	}
	st := store.NewPostgres(db)
	return st, newKYCPostgresTx(db, st, cfg.Tx.Timeout), nil
}

func openStorage(ctx context.Context, cfg config.Config, d *deps) (service.DocumentStorage, error) {
	if cfg.Storage.Backend == "gcs" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		d.gcs = client
		return storage.NewGCS(client, cfg.Storage.GCSBucket), nil
	}
	return storage.NewLocal(cfg.Storage.LocalDir)
}

func healthz(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if d.db != nil {
			checks["postgres"] = "ok"
			if err := d.db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if d.redis != nil {
			checks["redis"] = "ok"
			if err := d.redis.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
	}
}
