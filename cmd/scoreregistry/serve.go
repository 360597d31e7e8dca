package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/config"
	"github.com/davicafu/scoreregistry/internal/score/application"
	scoreDomain "github.com/davicafu/scoreregistry/internal/score/domain"
	scoreEvents "github.com/davicafu/scoreregistry/internal/score/infra/inbound/events"
	scoreHttp "github.com/davicafu/scoreregistry/internal/score/infra/inbound/http"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/analytics/clickhouse"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
	infraEvents "github.com/davicafu/scoreregistry/internal/shared/infra/events"
	"github.com/davicafu/scoreregistry/internal/shared/infra/http/middleware"
	sharedBus "github.com/davicafu/scoreregistry/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/scoreregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/metrics"
	"github.com/davicafu/scoreregistry/internal/shared/infra/relayer"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the outbox relayer and the event consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger.Logger())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---------------- DB ----------------
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// ---------------- Cache ----------------
	cache := newCache(ctx, cfg, log)

	// -------------- Analytics --------------
	var analytics *clickhouse.ScoreAnalyticsRepo
	if cfg.ClickHouseAddr != "" {
		if analytics, err = clickhouse.NewScoreAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB); err != nil {
			log.Warn("⚠️ ClickHouse no disponible, réplica analítica deshabilitada", zap.Error(err))
			analytics = nil
		} else if err := analytics.InitSchema(ctx); err != nil {
			return err
		}
	}

	// --------------- Servicio --------------
	m := metrics.New()
	paginator := paging.NewPaginator(cfg.MaxPageSize)
	history := historySource(cfg, st.events, analytics, log)
	scoreService := application.NewScoreService(st.scores, history, st.communities, cache, paginator, m, log)

	// ---------------- Events ---------------
	publisher, closeBus := startEvents(ctx, cfg, scoreService, analytics, log)
	defer closeBus()

	// ------------ Outbox Worker ------------
	registry := scoreDomain.NewEventRegistry()
	worker := relayer.NewOutboxWorker(st.outbox, publisher, registry, cfg.OutboxPeriod, cfg.OutboxLimit, log)
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	limiter := middleware.NewLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, time.Minute)
	defer limiter.Shutdown()
	if len(cfg.APIKeys) == 0 {
		log.Warn("⚠️ API_KEYS vacío: todas las peticiones a /v2/score serán rechazadas")
	}

	router := gin.New()
	router.Use(gin.Recovery(), m.Middleware())
	scoreHandler := scoreHttp.NewScoreHandler(scoreService, cfg.PublicBaseURL, cfg.TrustForwardedProto, log)
	scoreHttp.RegisterScoreRoutes(router, scoreHandler,
		middleware.APIKeyAuth(cfg.APIKeys),
		middleware.RateLimit(limiter),
	)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort), zap.String("store", cfg.Store))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("🛑 Server stopped")
	return nil
}

// newCache usa Redis si responde y si no un caché en memoria.
func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) sharedCache.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		_ = rdb.Close()
		return sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	}
	log.Info("✅ Redis conectado, cache habilitado")
	return sharedCache.NewRedisCache(rdb, "scoreregistry", cfg.CacheTTL)
}

// historySource elige de dónde se lee el histórico. Con HISTORY_SOURCE=clickhouse
// las lecturas van a la réplica analítica; si no está disponible se vuelve al
// almacén principal.
func historySource(
	cfg *config.Config,
	primary scoreDomain.EventRepository,
	analytics *clickhouse.ScoreAnalyticsRepo,
	log *zap.Logger,
) scoreDomain.EventRepository {
	if cfg.HistorySource != config.HistoryClickHouse {
		return primary
	}
	if analytics == nil {
		log.Warn("⚠️ HISTORY_SOURCE=clickhouse sin réplica disponible, se lee del almacén principal")
		return primary
	}
	log.Info("📊 Histórico servido desde ClickHouse")
	return analytics
}

// startEvents arranca el bus (Kafka o en memoria) y sus consumidores.
// Devuelve el publisher del topic de scores para el relayer.
func startEvents(
	ctx context.Context,
	cfg *config.Config,
	service *application.ScoreService,
	analytics *clickhouse.ScoreAnalyticsRepo,
	log *zap.Logger,
) (sharedBus.EventBus, func()) {
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))

		publisher := infraEvents.NewKafkaPublisher(infraEvents.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopicScore), log)

		computed := infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopicComputed, cfg.KafkaGroupID)
		infraEvents.NewConsumerAdapter(computed, scoreEvents.NewScoreConsumer(service, log), log).Start(ctx)

		if analytics != nil {
			projected := infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopicScore, cfg.KafkaGroupID+"-analytics")
			infraEvents.NewConsumerAdapter(projected, scoreEvents.NewAnalyticsProjector(analytics, log), log).Start(ctx)
		}
		return publisher, func() { _ = publisher.Close() }
	}

	log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")
	scoreBus := infraEvents.NewInMemoryEventBus(cfg.KafkaTopicScore, log)
	if analytics != nil {
		log.Info("🎧 Iniciando listener en memoria para la réplica analítica")
		infraEvents.Consume(ctx, scoreBus.Subscribe(100), scoreEvents.NewAnalyticsProjector(analytics, log), log)
	}
	log.Info("ℹ️ Sin Kafka no se consumen eventos " + sharedEvents.ScoreComputedType)
	return scoreBus, func() {}
}
