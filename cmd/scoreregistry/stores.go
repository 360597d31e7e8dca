package main

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/config"
	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/db/memory"
	scoreMongo "github.com/davicafu/scoreregistry/internal/score/infra/outbound/db/mongodb"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/db/sqlstore"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
)

// stores agrupa los repositorios de un mismo almacén.
type stores struct {
	scores      domain.ScoreRepository
	events      domain.EventRepository
	communities domain.CommunityRepository
	outbox      sharedDomain.OutboxRepository
	close       func()
}

// openStores abre el almacén configurado y prepara su esquema.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		s := memory.NewStore()
		log.Warn("⚠️ Almacén en memoria: los datos se pierden al salir")
		return &stores{scores: s.Scores(), events: s.Events(), communities: s, outbox: s, close: func() {}}, nil

	case config.StoreSQLite, config.StorePostgres:
		d, dsn := sqldb.SQLite, cfg.SQLitePath
		if cfg.Store == config.StorePostgres {
			d, dsn = sqldb.Postgres, cfg.PostgresDSN
		}
		db, err := sqlstore.Open(d, dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", d.Name, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", d.Name, err)
		}
		if err := sqlstore.InitSchema(ctx, db, d); err != nil {
			db.Close()
			return nil, fmt.Errorf("init %s schema: %w", d.Name, err)
		}
		log.Info("✅ Base de datos SQL lista", zap.String("dialect", d.Name))
		return &stores{
			scores:      sqlstore.NewScoreRepo(db, d),
			events:      sqlstore.NewEventRepo(db, d),
			communities: sqlstore.NewCommunityRepo(db, d),
			outbox:      sqldb.NewOutboxRepo(db, d),
			close:       func() { db.Close() },
		}, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() { _ = client.Disconnect(context.Background()) }
		s, err := scoreMongo.NewStore(ctx, client, cfg.MongoDB)
		if err != nil {
			disconnect()
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info("✅ MongoDB conectado", zap.String("db", cfg.MongoDB))
		return &stores{scores: s.Scores(), events: s.Events(), communities: s, outbox: s.Outbox(), close: disconnect}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
