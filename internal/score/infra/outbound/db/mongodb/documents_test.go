package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/scoreregistry/internal/score/domain"
)

func TestScoreMapping(t *testing.T) {
	msg := "boom"
	in := &domain.Score{
		ID:                 4,
		CommunityID:        1,
		Address:            "0xabc",
		Score:              decimal.RequireFromString("21.750000001"),
		Status:             domain.StatusError,
		LastScoreTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 1234567, time.UTC),
		Evidence:           map[string]interface{}{"rawScore": "21.75"},
		Error:              &msg,
	}

	ms, err := toMongoScore(in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 1000000, time.UTC), ms.LastScoreTimestamp)

	out, err := fromMongoScore(ms)
	require.NoError(t, err)
	assert.True(t, in.Score.Equal(out.Score))
	assert.Equal(t, in.Address, out.Address)
	assert.Equal(t, in.Error, out.Error)
	assert.Equal(t, ms.LastScoreTimestamp, out.LastScoreTimestamp)
}

func TestScoreEventMapping(t *testing.T) {
	in := &domain.ScoreEvent{
		ID:          9,
		CommunityID: 1,
		Address:     "0xabc",
		Action:      domain.ActionScoreUpdate,
		Score:       decimal.NewFromInt(0),
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("", 3600)),
	}
	me, err := toMongoScoreEvent(in)
	require.NoError(t, err)

	out, err := fromMongoScoreEvent(me)
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, time.UTC, out.CreatedAt.Location())
	assert.True(t, out.Score.IsZero())
}

func TestCommunityMapping(t *testing.T) {
	deleted := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	c := fromMongoCommunity(toMongoCommunity(&domain.Community{ID: 1, AccountID: 2, Name: "x", DeletedAt: &deleted}))
	require.NotNil(t, c.DeletedAt)
	assert.Equal(t, deleted, *c.DeletedAt)
	assert.False(t, c.OwnedBy(2))

	c = fromMongoCommunity(toMongoCommunity(&domain.Community{ID: 1, AccountID: 2}))
	assert.Nil(t, c.DeletedAt)
	assert.True(t, c.OwnedBy(2))
}
