package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	sharedCache "github.com/davicafu/scoreregistry/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/scoreregistry/internal/shared/infra/utils"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

const communityCacheTTL = 120

// PageObserver recibe una observación por cada página servida (métricas).
type PageObserver interface {
	ObservePage(resource string, items int, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePage(string, int, error, time.Duration) {}

// ScoreService define los casos de uso de lectura y escritura de scores.
type ScoreService struct {
	scores      domain.ScoreRepository
	events      domain.EventRepository
	communities domain.CommunityRepository
	cache       sharedCache.Cache
	paginator   *paging.Paginator
	observer    PageObserver
	log         *zap.Logger
	now         func() time.Time
}

// NewScoreService es el constructor. cache y observer pueden ser nil.
func NewScoreService(
	scores domain.ScoreRepository,
	events domain.EventRepository,
	communities domain.CommunityRepository,
	cache sharedCache.Cache,
	paginator *paging.Paginator,
	observer PageObserver,
	log *zap.Logger,
) *ScoreService {
	if observer == nil {
		observer = nopObserver{}
	}
	if paginator == nil {
		paginator = paging.NewPaginator(paging.DefaultMaxLimit)
	}
	return &ScoreService{
		scores:      scores,
		events:      events,
		communities: communities,
		cache:       cache,
		paginator:   paginator,
		observer:    observer,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MaxLimit es el tamaño de página máximo (y por defecto).
func (s *ScoreService) MaxLimit() int {
	return s.paginator.MaxLimit()
}

// ---------- Lectura ----------

// ListScores pagina los scores de una comunidad por (last_score_timestamp, id).
func (s *ScoreService) ListScores(ctx context.Context, accountID, scorerID int64, p ListScoresParams) (*paging.Page[*domain.Score], error) {
	start := time.Now()
	page, err := s.listScores(ctx, accountID, scorerID, p)
	s.observer.ObservePage("scores", pageSize(page), err, time.Since(start))
	if err != nil {
		s.logReadError("List scores failed", accountID, scorerID, err)
	}
	return page, err
}

func (s *ScoreService) listScores(ctx context.Context, accountID, scorerID int64, p ListScoresParams) (*paging.Page[*domain.Score], error) {
	if err := s.paginator.CheckLimit(p.Limit); err != nil {
		return nil, err
	}
	cursor, err := decodeToken(p.Token)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		if p, err = p.fromCursor(cursor); err != nil {
			return nil, err
		}
	}
	p.Address = domain.NormalizeAddress(p.Address)

	if _, err := s.ownedCommunity(ctx, scorerID, accountID); err != nil {
		return nil, err
	}

	filter := sharedDomain.And(
		domain.CommunityCriteria{ID: scorerID},
		domain.LastScoreTimestampCriteria{Gt: p.LastScoreTimestampGt, Gte: p.LastScoreTimestampGte},
	)
	if p.Address != "" {
		filter = sharedDomain.And(filter, domain.AddressCriteria{Address: p.Address})
	}

	return paging.FetchPage[*domain.Score](ctx, s.paginator, s.scores, paging.Request{
		Filter:   filter,
		Sort:     ScoreSort,
		Cursor:   cursor,
		Limit:    p.Limit,
		Retained: p.retained(),
	})
}

// ListScoreHistory resuelve los tres modos del histórico:
//   - address + created_at: último evento de esa dirección hasta created_at (sin paginar)
//   - created_at: foto de la comunidad en created_at, una fila por dirección
//   - ninguno: histórico completo, del más reciente al más antiguo
func (s *ScoreService) ListScoreHistory(ctx context.Context, accountID, scorerID int64, p HistoryParams) (*paging.Page[*domain.ScoreEvent], error) {
	start := time.Now()
	page, err := s.listScoreHistory(ctx, accountID, scorerID, p)
	s.observer.ObservePage("history", pageSize(page), err, time.Since(start))
	if err != nil {
		s.logReadError("List score history failed", accountID, scorerID, err)
	}
	return page, err
}

func (s *ScoreService) listScoreHistory(ctx context.Context, accountID, scorerID int64, p HistoryParams) (*paging.Page[*domain.ScoreEvent], error) {
	if err := s.paginator.CheckLimit(p.Limit); err != nil {
		return nil, err
	}
	cursor, err := decodeToken(p.Token)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		if p, err = p.fromCursor(cursor); err != nil {
			return nil, err
		}
	}
	p.Address = domain.NormalizeAddress(p.Address)

	if _, err := s.ownedCommunity(ctx, scorerID, accountID); err != nil {
		return nil, err
	}

	// 1. Dirección concreta en un instante: un único evento
	if p.Address != "" && p.CreatedAt != nil {
		if cursor != nil {
			return nil, fmt.Errorf("%w: point lookups are not paginated", paging.ErrInvalidCursor)
		}
		evt, err := s.events.LatestAt(ctx, scorerID, p.Address, *p.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &paging.Page[*domain.ScoreEvent]{Items: []*domain.ScoreEvent{evt}}, nil
	}

	filter := sharedDomain.And(
		domain.CommunityCriteria{ID: scorerID},
		domain.ActionCriteria{Action: domain.ActionScoreUpdate},
	)
	req := paging.Request{Cursor: cursor, Limit: p.Limit, Retained: p.retained()}

	// 2. Foto por dirección en created_at
	if p.CreatedAt != nil {
		req.Filter = filter
		req.Sort = SnapshotSort
		return paging.FetchPage[*domain.ScoreEvent](ctx, s.paginator, s.events.Snapshot(*p.CreatedAt), req)
	}

	// 3. Histórico completo
	if p.Address != "" {
		filter = sharedDomain.And(filter, domain.AddressCriteria{Address: p.Address})
	}
	req.Filter = filter
	req.Sort = HistorySort
	return paging.FetchPage[*domain.ScoreEvent](ctx, s.paginator, s.events, req)
}

// GetScore devuelve el score actual de una dirección. Una dirección sin
// score en la comunidad es ErrScoreNotFound.
func (s *ScoreService) GetScore(ctx context.Context, accountID, scorerID int64, address string) (*domain.Score, error) {
	score, err := s.getScore(ctx, accountID, scorerID, address)
	if err != nil {
		s.logReadError("Get score failed", accountID, scorerID, err)
	}
	return score, err
}

func (s *ScoreService) getScore(ctx context.Context, accountID, scorerID int64, address string) (*domain.Score, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", domain.ErrInvalidScore)
	}

	if _, err := s.ownedCommunity(ctx, scorerID, accountID); err != nil {
		return nil, err
	}

	items, err := s.scores.Find(ctx, query.Query{
		Filter: sharedDomain.And(
			domain.CommunityCriteria{ID: scorerID},
			domain.AddressCriteria{Address: address},
		),
		OrderBy: ScoreSort,
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

// ---------- Escritura ----------

// RecordScore guarda un score calculado: upsert del score, evento de
// histórico y evento de outbox en la misma transacción.
func (s *ScoreService) RecordScore(ctx context.Context, u domain.ScoreUpdate) (*domain.Score, error) {
	u.Address = domain.NormalizeAddress(u.Address)
	if u.CommunityID <= 0 || u.Address == "" {
		return nil, fmt.Errorf("%w: community and address are required", domain.ErrInvalidScore)
	}
	switch u.Status {
	case "":
		u.Status = domain.StatusDone
	case domain.StatusDone, domain.StatusProcessing, domain.StatusError:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidScore, u.Status)
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = s.now()
	}
	u.Timestamp = u.Timestamp.UTC()

	if _, err := s.community(ctx, u.CommunityID); err != nil {
		return nil, err
	}

	score := &domain.Score{
		CommunityID:        u.CommunityID,
		Address:            u.Address,
		Score:              u.Score,
		Status:             u.Status,
		LastScoreTimestamp: u.Timestamp,
		Evidence:           u.Evidence,
		Error:              u.Error,
	}
	evt := &domain.ScoreEvent{
		CommunityID: u.CommunityID,
		Address:     u.Address,
		Action:      domain.ActionScoreUpdate,
		Score:       u.Score,
		Evidence:    u.Evidence,
		CreatedAt:   u.Timestamp,
	}
	outboxEvent := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "score",
		AggregateID:   fmt.Sprintf("%d:%s", u.CommunityID, u.Address),
		EventType:     domain.ScoreUpdated,
		Payload:       evt, // el repo rellena evt.ID antes de serializar
		CreatedAt:     s.now(),
	}

	if err := s.scores.Save(ctx, score, evt, outboxEvent); err != nil {
		s.log.Error("Failed to record score",
			zap.Int64("scorer_id", u.CommunityID),
			zap.String("address", u.Address),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Debug("Score recorded",
		zap.Int64("scorer_id", u.CommunityID),
		zap.String("address", u.Address),
		zap.Int64("score_id", score.ID),
	)
	return score, nil
}

// ---------- Comunidades ----------

// ownedCommunity devuelve ErrCommunityNotFound también cuando la comunidad
// existe pero no pertenece a la cuenta.
func (s *ScoreService) ownedCommunity(ctx context.Context, id, accountID int64) (*domain.Community, error) {
	c, err := s.community(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(accountID) {
		return nil, domain.ErrCommunityNotFound
	}
	return c, nil
}

// community usa cache-aside con reintentos sobre el repositorio.
func (s *ScoreService) community(ctx context.Context, id int64) (*domain.Community, error) {
	key := domain.CommunityCacheKeyByID(id)

	// 1. Intentar obtener de la caché
	if s.cache != nil {
		var c domain.Community
		if hit, _ := s.cache.Get(ctx, key, &c); hit {
			return &c, nil
		}
	}

	// 2. Si es 'miss', ir al repositorio con reintentos (un "no existe" no se reintenta)
	var c *domain.Community
	var notFound error
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var errRetry error
		c, errRetry = s.communities.GetByID(ctx, id)
		if errors.Is(errRetry, domain.ErrNotFound) {
			notFound = errRetry
			return nil
		}
		return errRetry
	})
	if err == nil && notFound != nil {
		err = notFound
	}
	if err != nil {
		return nil, err
	}

	// 3. Actualizar caché en segundo plano
	sharedCache.AsyncCacheSet(ctx, s.cache, key, c, communityCacheTTL, s.log)
	return c, nil
}

// ---------- Helpers ----------

func decodeToken(token string) (*paging.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	return paging.Decode(token)
}

func (s *ScoreService) logReadError(msg string, accountID, scorerID int64, err error) {
	log := s.log.Warn
	if !isClientError(err) {
		log = s.log.Error
	}
	log(msg,
		zap.Int64("scorer_id", scorerID),
		zap.Int64("account_id", accountID),
		zap.Error(err),
	)
}

// isClientError indica si el error se debe a la petición y no al almacén.
func isClientError(err error) bool {
	return errors.Is(err, paging.ErrInvalidLimit) ||
		errors.Is(err, paging.ErrInvalidCursor) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidScore)
}

func pageSize[T paging.Record](page *paging.Page[T]) int {
	if page == nil {
		return 0
	}
	return len(page.Items)
}
