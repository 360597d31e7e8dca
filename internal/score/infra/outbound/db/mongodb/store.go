package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	sharedMongo "github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

const (
	communitiesCollection = "communities"
	scoresCollection      = "scores"
	eventsCollection      = "score_events"
	countersCollection    = "counters"
)

// Store agrupa los repositorios de scores, histórico y comunidades sobre
// MongoDB. Las escrituras usan transacciones (requiere replica set).
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	communities *mongo.Collection
	scores      *mongo.Collection
	events      *mongo.Collection
	counters    *mongo.Collection
}

// NewStore es el constructor del repositorio.
func NewStore(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &Store{
		client:      client,
		db:          db,
		communities: db.Collection(communitiesCollection),
		scores:      db.Collection(scoresCollection),
		events:      db.Collection(eventsCollection),
		counters:    db.Collection(countersCollection),
	}, nil
}

// EnsureIndexes crea los índices que necesitan los recorridos por keyset.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.scores.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "community_id", Value: 1}, {Key: "address", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "community_id", Value: 1}, {Key: "last_score_timestamp", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create score indexes: %w", err)
	}
	_, err = s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "community_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "community_id", Value: 1}, {Key: "address", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create score event indexes: %w", err)
	}
	return nil
}

// Scores devuelve el repositorio de scores.
func (s *Store) Scores() *ScoreRepo { return &ScoreRepo{s: s} }

// Events devuelve el repositorio de histórico.
func (s *Store) Events() *EventRepo { return &EventRepo{s: s} }

// Outbox devuelve el repositorio de outbox de la misma base de datos.
func (s *Store) Outbox() *sharedMongo.OutboxRepo { return sharedMongo.NewOutboxRepo(s.db) }

// nextID reserva el siguiente id de una secuencia (colección counters).
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve %s id: %w", name, err)
	}
	return counter.Seq, nil
}

// find ejecuta una lectura filtrada, ordenada y acotada.
func find[D any, T any](ctx context.Context, coll *mongo.Collection, q query.Query, convert func(*D) (T, error)) ([]T, error) {
	filter, err := sharedMongo.Filter(q.Filter)
	if err != nil {
		return nil, err
	}
	sort, err := sharedMongo.Sort(q.OrderBy)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor, convert)
}

func exists(ctx context.Context, coll *mongo.Collection, c sharedDomain.Criteria) (bool, error) {
	filter, err := sharedMongo.Filter(c)
	if err != nil {
		return false, err
	}
	err = coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func decodeAll[D any, T any](ctx context.Context, cursor *mongo.Cursor, convert func(*D) (T, error)) ([]T, error) {
	defer cursor.Close(ctx)
	out := make([]T, 0)
	for cursor.Next(ctx) {
		var doc D
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		item, err := convert(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, cursor.Err()
}

// ---------------- Scores ----------------

type ScoreRepo struct {
	s *Store
}

func (r *ScoreRepo) Find(ctx context.Context, q query.Query) ([]*domain.Score, error) {
	return find(ctx, r.s.scores, q, fromMongoScore)
}

func (r *ScoreRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	return exists(ctx, r.s.scores, filter)
}

// Save hace upsert del score, inserta el evento de histórico y el de outbox
// en una transacción.
func (r *ScoreRepo) Save(ctx context.Context, sc *domain.Score, evt *domain.ScoreEvent, out sharedDomain.OutboxEvent) error {
	session, err := r.s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// 1. La comunidad debe existir
		if err := r.s.communities.FindOne(sessCtx, bson.M{"_id": sc.CommunityID}).Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, domain.ErrCommunityNotFound
			}
			return nil, err
		}

		// 2. Upsert del score conservando su id
		var current struct {
			ID int64 `bson:"_id"`
		}
		err := r.s.scores.FindOne(sessCtx,
			bson.M{"community_id": sc.CommunityID, "address": sc.Address},
			options.FindOne().SetProjection(bson.M{"_id": 1}),
		).Decode(&current)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			if sc.ID, err = r.s.nextID(sessCtx, scoresCollection); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			sc.ID = current.ID
		}
		ms, err := toMongoScore(sc)
		if err != nil {
			return nil, err
		}
		if _, err := r.s.scores.ReplaceOne(sessCtx, bson.M{"_id": ms.ID}, ms, options.Replace().SetUpsert(true)); err != nil {
			return nil, err
		}

		// 3. Evento de histórico
		if evt.ID, err = r.s.nextID(sessCtx, eventsCollection); err != nil {
			return nil, err
		}
		me, err := toMongoScoreEvent(evt)
		if err != nil {
			return nil, err
		}
		if _, err := r.s.events.InsertOne(sessCtx, me); err != nil {
			return nil, err
		}

		// 4. Evento de outbox (el payload ya lleva el id del evento)
		return nil, sharedMongo.InsertOutbox(sessCtx, r.s.db, out)
	})
	return err
}

// ---------------- Histórico ----------------

type EventRepo struct {
	s *Store
}

func (r *EventRepo) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	return find(ctx, r.s.events, q, fromMongoScoreEvent)
}

func (r *EventRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	return exists(ctx, r.s.events, filter)
}

func (r *EventRepo) LatestAt(ctx context.Context, communityID int64, address string, at time.Time) (*domain.ScoreEvent, error) {
	items, err := r.Find(ctx, query.Query{
		Filter: sharedDomain.And(
			domain.CommunityCriteria{ID: communityID},
			domain.AddressCriteria{Address: address},
			domain.ActionCriteria{Action: domain.ActionScoreUpdate},
			domain.CreatedAtUntilCriteria{At: at},
		),
		OrderBy: query.SortSpec{query.Desc("created_at"), query.Desc("id")},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrScoreNotFound
	}
	return items[0], nil
}

func (r *EventRepo) Snapshot(at time.Time) paging.Source[*domain.ScoreEvent] {
	return &snapshot{s: r.s, at: at}
}

// snapshot agrupa por (comunidad, dirección) y se queda con el evento más
// reciente hasta at. Como en SQL, los filtros solo tocan campos constantes
// dentro de cada grupo y se aplican en el $match inicial.
type snapshot struct {
	s  *Store
	at time.Time
}

func (v *snapshot) pipeline(filter sharedDomain.Criteria) (mongo.Pipeline, error) {
	match, err := sharedMongo.Filter(sharedDomain.And(domain.CreatedAtUntilCriteria{At: v.at}, filter))
	if err != nil {
		return nil, err
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{
			{Key: "community_id", Value: 1},
			{Key: "address", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "c", Value: "$community_id"}, {Key: "a", Value: "$address"}}},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
	}, nil
}

func (v *snapshot) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	pipeline, err := v.pipeline(q.Filter)
	if err != nil {
		return nil, err
	}
	sort, err := sharedMongo.Sort(q.OrderBy)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}

	cursor, err := v.s.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor, fromMongoScoreEvent)
}

func (v *snapshot) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	pipeline, err := v.pipeline(filter)
	if err != nil {
		return false, err
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: 1}})

	cursor, err := v.s.events.Aggregate(ctx, pipeline)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)
	return cursor.Next(ctx), cursor.Err()
}

// ---------------- Comunidades ----------------

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Community, error) {
	var mc mongoCommunity
	err := s.communities.FindOne(ctx, bson.M{"_id": id}).Decode(&mc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCommunityNotFound
		}
		return nil, err
	}
	return fromMongoCommunity(&mc), nil
}

func (s *Store) Save(ctx context.Context, c *domain.Community) error {
	if c.ID <= 0 {
		return fmt.Errorf("community id must be positive, got %d", c.ID)
	}
	mc := toMongoCommunity(c)
	_, err := s.communities.ReplaceOne(ctx, bson.M{"_id": mc.ID}, mc, options.Replace().SetUpsert(true))
	return err
}

// Verificación en tiempo de compilación.
var (
	_ domain.ScoreRepository     = (*ScoreRepo)(nil)
	_ domain.EventRepository     = (*EventRepo)(nil)
	_ domain.CommunityRepository = (*Store)(nil)
)
