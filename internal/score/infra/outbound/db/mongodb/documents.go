package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedMongo "github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/mongodb"
)

// --- Structs de BSON para el mapeo ---
// Se definen aquí para no llenar el dominio de tags de BSON.

type mongoCommunity struct {
	ID        int64      `bson:"_id"`
	AccountID int64      `bson:"account_id"`
	Name      string     `bson:"name"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty"`
}

type mongoScore struct {
	ID                 int64                  `bson:"_id"`
	CommunityID        int64                  `bson:"community_id"`
	Address            string                 `bson:"address"`
	Score              primitive.Decimal128   `bson:"score"`
	Status             string                 `bson:"status"`
	LastScoreTimestamp time.Time              `bson:"last_score_timestamp"`
	Evidence           map[string]interface{} `bson:"evidence,omitempty"`
	Error              *string                `bson:"error,omitempty"`
}

type mongoScoreEvent struct {
	ID          int64                  `bson:"_id"`
	CommunityID int64                  `bson:"community_id"`
	Address     string                 `bson:"address"`
	Action      string                 `bson:"action"`
	Score       primitive.Decimal128   `bson:"score"`
	Evidence    map[string]interface{} `bson:"evidence,omitempty"`
	CreatedAt   time.Time              `bson:"created_at"`
}

// --- Helpers de Mapeo y Conversión ---

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	dec, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("score %s does not fit decimal128: %w", d, err)
	}
	return dec, nil
}

func fromDecimal128(dec primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(dec.String())
}

func toMongoScore(s *domain.Score) (*mongoScore, error) {
	dec, err := toDecimal128(s.Score)
	if err != nil {
		return nil, err
	}
	return &mongoScore{
		ID: s.ID, CommunityID: s.CommunityID, Address: s.Address, Score: dec, Status: s.Status,
		LastScoreTimestamp: sharedMongo.Truncate(s.LastScoreTimestamp), Evidence: s.Evidence, Error: s.Error,
	}, nil
}

func fromMongoScore(ms *mongoScore) (*domain.Score, error) {
	score, err := fromDecimal128(ms.Score)
	if err != nil {
		return nil, fmt.Errorf("invalid score in document %d: %w", ms.ID, err)
	}
	return &domain.Score{
		ID: ms.ID, CommunityID: ms.CommunityID, Address: ms.Address, Score: score, Status: ms.Status,
		LastScoreTimestamp: ms.LastScoreTimestamp.UTC(), Evidence: ms.Evidence, Error: ms.Error,
	}, nil
}

func toMongoScoreEvent(e *domain.ScoreEvent) (*mongoScoreEvent, error) {
	dec, err := toDecimal128(e.Score)
	if err != nil {
		return nil, err
	}
	return &mongoScoreEvent{
		ID: e.ID, CommunityID: e.CommunityID, Address: e.Address, Action: e.Action, Score: dec,
		Evidence: e.Evidence, CreatedAt: sharedMongo.Truncate(e.CreatedAt),
	}, nil
}

func fromMongoScoreEvent(me *mongoScoreEvent) (*domain.ScoreEvent, error) {
	score, err := fromDecimal128(me.Score)
	if err != nil {
		return nil, fmt.Errorf("invalid score in event %d: %w", me.ID, err)
	}
	return &domain.ScoreEvent{
		ID: me.ID, CommunityID: me.CommunityID, Address: me.Address, Action: me.Action, Score: score,
		Evidence: me.Evidence, CreatedAt: me.CreatedAt.UTC(),
	}, nil
}

func toMongoCommunity(c *domain.Community) *mongoCommunity {
	mc := &mongoCommunity{ID: c.ID, AccountID: c.AccountID, Name: c.Name}
	if c.DeletedAt != nil {
		t := sharedMongo.Truncate(*c.DeletedAt)
		mc.DeletedAt = &t
	}
	return mc
}

func fromMongoCommunity(mc *mongoCommunity) *domain.Community {
	c := &domain.Community{ID: mc.ID, AccountID: mc.AccountID, Name: mc.Name}
	if mc.DeletedAt != nil {
		t := mc.DeletedAt.UTC()
		c.DeletedAt = &t
	}
	return c
}
