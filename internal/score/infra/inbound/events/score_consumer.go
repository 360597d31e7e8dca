package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
	sharedUtils "github.com/davicafu/scoreregistry/internal/shared/infra/utils"
)

const handleTimeout = 500 * time.Millisecond

// ScoreRecorder es lo que el consumidor necesita del servicio.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, u domain.ScoreUpdate) (*domain.Score, error)
}

// ScoreConsumer convierte los scores calculados por el servicio externo en
// escrituras del registro.
type ScoreConsumer struct {
	service ScoreRecorder
	log     *zap.Logger
}

func NewScoreConsumer(service ScoreRecorder, logger *zap.Logger) *ScoreConsumer {
	return &ScoreConsumer{service: service, log: logger}
}

func (c *ScoreConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case sharedEvents.ScoreComputedType:
		sharedUtils.UnmarshalAndHandle[sharedEvents.ScoreComputed](c.log, base.Data, func(evt sharedEvents.ScoreComputed) {
			c.record(ctx, evt)
		})
	default:
		c.log.Warn("Unknown event type", zap.String("type", base.Type))
	}
}

func (c *ScoreConsumer) record(ctx context.Context, evt sharedEvents.ScoreComputed) {
	update, err := ToScoreUpdate(evt)
	if err != nil {
		c.log.Warn("Invalid score.computed event",
			zap.Int64("scorer_id", evt.CommunityID),
			zap.String("address", evt.Address),
			zap.Error(err),
		)
		return
	}

	ctxScore, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if _, err := c.service.RecordScore(ctxScore, update); err != nil {
		c.log.Warn("Failed to record computed score",
			zap.Int64("scorer_id", update.CommunityID),
			zap.String("address", update.Address),
			zap.Error(err),
		)
		return
	}
	c.log.Info("Score recorded via event",
		zap.Int64("scorer_id", update.CommunityID),
		zap.String("address", update.Address),
	)
}

// ToScoreUpdate traduce el contrato de integración a la entrada del dominio.
func ToScoreUpdate(evt sharedEvents.ScoreComputed) (domain.ScoreUpdate, error) {
	u := domain.ScoreUpdate{
		CommunityID: evt.CommunityID,
		Address:     evt.Address,
		Status:      evt.Status,
		Error:       evt.Error,
		Timestamp:   evt.Timestamp,
	}
	if evt.Score != "" {
		score, err := decimal.NewFromString(evt.Score)
		if err != nil {
			return u, fmt.Errorf("%w: score %q", domain.ErrInvalidScore, evt.Score)
		}
		u.Score = score
	}
	if len(evt.Evidence) > 0 && string(evt.Evidence) != "null" {
		if err := json.Unmarshal(evt.Evidence, &u.Evidence); err != nil {
			return u, fmt.Errorf("%w: evidence: %v", domain.ErrInvalidScore, err)
		}
	}
	return u, nil
}
