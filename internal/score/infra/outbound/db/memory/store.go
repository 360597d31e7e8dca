package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// Store es un almacén en memoria con las mismas garantías transaccionales
// que los repositorios SQL (un único mutex). Sirve para tests y despliegues
// locales sin base de datos.
type Store struct {
	mu          sync.RWMutex
	scores      []*domain.Score
	events      []*domain.ScoreEvent
	communities map[int64]*domain.Community
	outbox      []sharedDomain.OutboxEvent
	processed   map[uuid.UUID]bool
	nextScoreID int64
	nextEventID int64
}

func NewStore() *Store {
	return &Store{
		communities: make(map[int64]*domain.Community),
		processed:   make(map[uuid.UUID]bool),
	}
}

// Scores devuelve la vista de scores del almacén.
func (s *Store) Scores() *ScoreRepo { return &ScoreRepo{s: s} }

// Events devuelve la vista de histórico del almacén.
func (s *Store) Events() *EventRepo { return &EventRepo{s: s} }

// ---------------- Scores ----------------

type ScoreRepo struct {
	s *Store
}

func (r *ScoreRepo) Find(ctx context.Context, q query.Query) ([]*domain.Score, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return find(r.s.scores, q, cloneScore), nil
}

func (r *ScoreRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return exists(r.s.scores, filter), nil
}

func (r *ScoreRepo) Save(ctx context.Context, sc *domain.Score, evt *domain.ScoreEvent, out sharedDomain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.communities[sc.CommunityID]; !ok {
		return domain.ErrCommunityNotFound
	}

	var existing *domain.Score
	for _, cur := range r.s.scores {
		if cur.CommunityID == sc.CommunityID && cur.Address == sc.Address {
			existing = cur
			break
		}
	}
	if existing == nil {
		r.s.nextScoreID++
		sc.ID = r.s.nextScoreID
		r.s.scores = append(r.s.scores, cloneScore(sc))
	} else {
		sc.ID = existing.ID
		*existing = *cloneScore(sc)
	}

	r.s.nextEventID++
	evt.ID = r.s.nextEventID
	r.s.events = append(r.s.events, cloneEvent(evt))

	r.s.outbox = append(r.s.outbox, out)
	return nil
}

// ---------------- Histórico ----------------

type EventRepo struct {
	s *Store
}

func (r *EventRepo) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return find(r.s.events, q, cloneEvent), nil
}

func (r *EventRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return exists(r.s.events, filter), nil
}

func (r *EventRepo) LatestAt(ctx context.Context, communityID int64, address string, at time.Time) (*domain.ScoreEvent, error) {
	filter := sharedDomain.And(
		domain.CommunityCriteria{ID: communityID},
		domain.AddressCriteria{Address: address},
		domain.ActionCriteria{Action: domain.ActionScoreUpdate},
		domain.CreatedAtUntilCriteria{At: at},
	)
	items, err := r.Find(ctx, query.Query{
		Filter:  filter,
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

// snapshot es la vista "último evento por dirección hasta at". El filtro se
// aplica dentro de cada (comunidad, dirección) antes de elegir el último,
// igual que la subconsulta SQL y el $match de Mongo.
type snapshot struct {
	s  *Store
	at time.Time
}

func (v *snapshot) latest(filter sharedDomain.Criteria) []*domain.ScoreEvent {
	type key struct {
		community int64
		address   string
	}
	byAddress := make(map[key]*domain.ScoreEvent)
	var order []key
	for _, e := range v.s.events {
		if e.CreatedAt.After(v.at) || !sharedDomain.Matches(filter, e.FieldValue) {
			continue
		}
		k := key{e.CommunityID, e.Address}
		cur, ok := byAddress[k]
		if !ok {
			order = append(order, k)
		}
		if !ok || e.CreatedAt.After(cur.CreatedAt) || (e.CreatedAt.Equal(cur.CreatedAt) && e.ID > cur.ID) {
			byAddress[k] = e
		}
	}
	out := make([]*domain.ScoreEvent, 0, len(order))
	for _, k := range order {
		out = append(out, byAddress[k])
	}
	return out
}

func (v *snapshot) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return find(v.latest(q.Filter), query.Query{OrderBy: q.OrderBy, Limit: q.Limit}, cloneEvent), nil
}

func (v *snapshot) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return len(v.latest(filter)) > 0, nil
}

// ---------------- Comunidades ----------------

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communities[id]
	if !ok {
		return nil, domain.ErrCommunityNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) Save(ctx context.Context, c *domain.Community) error {
	if c.ID <= 0 {
		return fmt.Errorf("community id must be positive, got %d", c.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.communities[c.ID] = &cp
	return nil
}

// ---------------- Outbox ----------------

func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sharedDomain.OutboxEvent
	for _, evt := range s.outbox {
		if s.processed[evt.ID] {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range s.outbox {
		if evt.ID == id {
			s.processed[id] = true
			return nil
		}
	}
	return fmt.Errorf("outbox event not found: %s", id)
}

// Outbox devuelve una copia de todos los eventos de outbox guardados.
func (s *Store) Outbox() []sharedDomain.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sharedDomain.OutboxEvent(nil), s.outbox...)
}

// ---------------- Helpers ----------------

func cloneScore(sc *domain.Score) *domain.Score {
	cp := *sc
	return &cp
}

func cloneEvent(e *domain.ScoreEvent) *domain.ScoreEvent {
	cp := *e
	return &cp
}

// Verificación estática
var (
	_ domain.ScoreRepository        = (*ScoreRepo)(nil)
	_ domain.EventRepository        = (*EventRepo)(nil)
	_ domain.CommunityRepository    = (*Store)(nil)
	_ sharedDomain.OutboxRepository = (*Store)(nil)
)
