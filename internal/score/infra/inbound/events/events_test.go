package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
)

// ---------- Mocks ----------

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordScore(ctx context.Context, u domain.ScoreUpdate) (*domain.Score, error) {
	args := m.Called(ctx, u)
	s, _ := args.Get(0).(*domain.Score)
	return s, args.Error(1)
}

type mockAnalytics struct {
	mock.Mock
}

func (m *mockAnalytics) LogBatch(ctx context.Context, events []*domain.ScoreEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func envelope(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(sharedEvents.IntegrationEvent{Type: eventType, Timestamp: time.Now(), Data: raw})
	require.NoError(t, err)
	return b
}

// ---------- ScoreConsumer ----------

func TestScoreConsumer_RecordsComputedScore(t *testing.T) {
	svc := new(mockRecorder)
	ts := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	svc.On("RecordScore", mock.Anything, mock.MatchedBy(func(u domain.ScoreUpdate) bool {
		return u.CommunityID == 1 &&
			u.Address == "0xABC" &&
			u.Score.Equal(decimal.RequireFromString("12.5")) &&
			u.Evidence["rawScore"] == "12.5" &&
			u.Timestamp.Equal(ts)
	})).Return(&domain.Score{ID: 1}, nil).Once()

	c := NewScoreConsumer(svc, zap.NewNop())
	c.HandleMessage(context.Background(), "k", envelope(t, sharedEvents.ScoreComputedType, sharedEvents.ScoreComputed{
		CommunityID: 1,
		Address:     "0xABC",
		Score:       "12.5",
		Status:      domain.StatusDone,
		Evidence:    json.RawMessage(`{"rawScore":"12.5"}`),
		Timestamp:   ts,
	}))

	svc.AssertExpectations(t)
}

func TestScoreConsumer_IgnoresBadInput(t *testing.T) {
	svc := new(mockRecorder)
	c := NewScoreConsumer(svc, zap.NewNop())
	ctx := context.Background()

	c.HandleMessage(ctx, "", []byte("not json"))
	c.HandleMessage(ctx, "", envelope(t, "other.event", map[string]string{}))
	c.HandleMessage(ctx, "", envelope(t, sharedEvents.ScoreComputedType, "not an object"))
	c.HandleMessage(ctx, "", envelope(t, sharedEvents.ScoreComputedType, sharedEvents.ScoreComputed{CommunityID: 1, Address: "0x1", Score: "abc"}))

	svc.AssertNotCalled(t, "RecordScore", mock.Anything, mock.Anything)
}

func TestScoreConsumer_ServiceErrorIsLogged(t *testing.T) {
	svc := new(mockRecorder)
	svc.On("RecordScore", mock.Anything, mock.Anything).Return(nil, domain.ErrCommunityNotFound).Once()

	c := NewScoreConsumer(svc, zap.NewNop())
	c.HandleMessage(context.Background(), "", envelope(t, sharedEvents.ScoreComputedType, sharedEvents.ScoreComputed{CommunityID: 9, Address: "0x1"}))
	svc.AssertExpectations(t)
}

func TestToScoreUpdate(t *testing.T) {
	msg := "timeout"
	u, err := ToScoreUpdate(sharedEvents.ScoreComputed{CommunityID: 2, Address: "0x2", Status: domain.StatusError, Error: &msg, Evidence: json.RawMessage("null")})
	require.NoError(t, err)
	assert.True(t, u.Score.IsZero())
	assert.Nil(t, u.Evidence)
	assert.Equal(t, &msg, u.Error)

	_, err = ToScoreUpdate(sharedEvents.ScoreComputed{Evidence: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, domain.ErrInvalidScore)
}

// ---------- AnalyticsProjector ----------

func TestAnalyticsProjector_LogsScoreUpdated(t *testing.T) {
	repo := new(mockAnalytics)
	created := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	evt := domain.ScoreEvent{
		ID:          7,
		CommunityID: 1,
		Address:     "0xabc",
		Action:      domain.ActionScoreUpdate,
		Score:       decimal.RequireFromString("3.25"),
		CreatedAt:   created,
	}

	repo.On("LogBatch", mock.Anything, mock.MatchedBy(func(events []*domain.ScoreEvent) bool {
		return len(events) == 1 &&
			events[0].ID == 7 &&
			events[0].Score.Equal(evt.Score) &&
			events[0].CreatedAt.Equal(created)
	})).Return(nil).Once()

	p := NewAnalyticsProjector(repo, zap.NewNop())
	p.HandleMessage(context.Background(), "score:1:0xabc", envelope(t, domain.ScoreUpdated, evt))
	repo.AssertExpectations(t)
}

func TestAnalyticsProjector_IgnoresOtherTypesAndErrors(t *testing.T) {
	repo := new(mockAnalytics)
	p := NewAnalyticsProjector(repo, zap.NewNop())

	p.HandleMessage(context.Background(), "", envelope(t, sharedEvents.ScoreComputedType, map[string]string{}))
	p.HandleMessage(context.Background(), "", []byte("{"))
	repo.AssertNotCalled(t, "LogBatch", mock.Anything, mock.Anything)

	repo.On("LogBatch", mock.Anything, mock.Anything).Return(errors.New("clickhouse down")).Once()
	p.HandleMessage(context.Background(), "", envelope(t, domain.ScoreUpdated, domain.ScoreEvent{ID: 1}))
	repo.AssertExpectations(t)
}
