package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
	sharedUtils "github.com/davicafu/scoreregistry/internal/shared/infra/utils"
)

// AnalyticsProjector replica los eventos score.updated en el almacén analítico.
type AnalyticsProjector struct {
	repo domain.ScoreAnalyticsRepository
	log  *zap.Logger
}

func NewAnalyticsProjector(repo domain.ScoreAnalyticsRepository, logger *zap.Logger) *AnalyticsProjector {
	return &AnalyticsProjector{repo: repo, log: logger}
}

func (p *AnalyticsProjector) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		p.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}
	if base.Type != domain.ScoreUpdated {
		return
	}

	sharedUtils.UnmarshalAndHandle[domain.ScoreEvent](p.log, base.Data, func(evt domain.ScoreEvent) {
		ctxLog, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()

		if err := p.repo.LogBatch(ctxLog, []*domain.ScoreEvent{&evt}); err != nil {
			p.log.Warn("Failed to project score event",
				zap.Int64("event_id", evt.ID),
				zap.Int64("scorer_id", evt.CommunityID),
				zap.Error(err),
			)
			return
		}
		p.log.Debug("Score event projected", zap.Int64("event_id", evt.ID))
	})
}
