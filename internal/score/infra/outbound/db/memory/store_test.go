package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// addEvent escribe directamente en el histórico, sin pasar por Save, para
// poder guardar acciones distintas de SCU.
func addEvent(s *Store, address, action string, score int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	s.events = append(s.events, &domain.ScoreEvent{
		ID:          s.nextEventID,
		CommunityID: 1,
		Address:     address,
		Action:      action,
		Score:       decimal.NewFromInt(score),
		CreatedAt:   at,
	})
}

func TestSnapshot_FilterIsAppliedPerAddress(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addEvent(s, "0xa", domain.ActionScoreUpdate, 1, base)
	addEvent(s, "0xa", "SCD", 0, base.Add(time.Minute))
	addEvent(s, "0xb", domain.ActionScoreUpdate, 2, base)
	addEvent(s, "0xb", domain.ActionScoreUpdate, 3, base.Add(2*time.Hour))

	snap := s.Events().Snapshot(base.Add(time.Hour))
	updates := sharedDomain.And(
		domain.CommunityCriteria{ID: 1},
		domain.ActionCriteria{Action: domain.ActionScoreUpdate},
	)
	byAddress := query.SortSpec{query.Asc("address")}

	items, err := snap.Find(ctx, query.Query{Filter: updates, OrderBy: byAddress})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "0xa", items[0].Address)
	assert.Equal(t, domain.ActionScoreUpdate, items[0].Action)
	assert.True(t, decimal.NewFromInt(1).Equal(items[0].Score))
	assert.Equal(t, "0xb", items[1].Address)
	assert.True(t, decimal.NewFromInt(2).Equal(items[1].Score), "events after the snapshot are ignored")

	ok, err := snap.Exists(ctx, sharedDomain.And(updates, domain.AddressCriteria{Address: "0xa"}))
	require.NoError(t, err)
	assert.True(t, ok)

	// sin filtro de acción el último evento de 0xa es el SCD
	items, err = snap.Find(ctx, query.Query{Filter: domain.CommunityCriteria{ID: 1}, OrderBy: byAddress})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "SCD", items[0].Action)
}

func TestSnapshot_KeysetAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, addr := range []string{"0xc", "0xa", "0xb"} {
		addEvent(s, addr, domain.ActionScoreUpdate, 1, base)
	}

	snap := s.Events().Snapshot(base)
	items, err := snap.Find(ctx, query.Query{
		Filter:  sharedDomain.Gt("address", "0xa"),
		OrderBy: query.SortSpec{query.Asc("address")},
		Limit:   1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "0xb", items[0].Address)

	ok, err := snap.Exists(ctx, sharedDomain.Gt("address", "0xc"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScoreRepo_FiltersByDecimalScore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Save(ctx, &domain.Community{ID: 1, AccountID: 10}))

	for i, raw := range []string{"0.5", "12.25", "3"} {
		sc := &domain.Score{CommunityID: 1, Address: []string{"0xa", "0xb", "0xc"}[i], Score: decimal.RequireFromString(raw)}
		evt := &domain.ScoreEvent{CommunityID: 1, Address: sc.Address, Action: domain.ActionScoreUpdate, Score: sc.Score, CreatedAt: base}
		require.NoError(t, s.Scores().Save(ctx, sc, evt, sharedDomain.OutboxEvent{}))
	}

	items, err := s.Scores().Find(ctx, query.Query{
		Filter:  sharedDomain.Gte("score", decimal.RequireFromString("3.0")),
		OrderBy: query.SortSpec{query.Desc("score")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "0xb", items[0].Address)
	assert.Equal(t, "0xc", items[1].Address)
}
