package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
	sharedBus "github.com/davicafu/scoreregistry/internal/shared/infra/platform/bus"
)

// ---------- Mocks ----------

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *mockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event interface{}) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var (
	_ sharedDomain.OutboxRepository = (*mockOutboxRepository)(nil)
	_ sharedBus.EventBus            = (*mockPublisher)(nil)
)

// ---------- Tests ----------

type scoreUpdated struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

func testRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		"score.updated": {Type: reflect.TypeOf(scoreUpdated{}), Topic: "score"},
	}
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	repo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	eventID := uuid.New()
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testEvent := sharedDomain.OutboxEvent{
		ID:            eventID,
		AggregateType: "score",
		AggregateID:   "1:0xabc",
		EventType:     "score.updated",
		Payload:       map[string]interface{}{"id": float64(3), "address": "0xabc", "extra": true},
		CreatedAt:     createdAt,
	}

	var published sharedEvents.IntegrationEvent
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.IntegrationEvent")).
		Run(func(args mock.Arguments) { published = args.Get(1).(sharedEvents.IntegrationEvent) }).
		Return(nil).Once()
	repo.On("MarkOutboxProcessed", mock.Anything, eventID).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, testRegistry(), time.Second, 10, zap.NewNop())
	assert.Equal(t, 1, worker.ProcessBatch(context.Background()))

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)

	assert.Equal(t, "score.updated", published.Type)
	assert.Equal(t, createdAt, published.Timestamp)
	assert.Equal(t, "score:1:0xabc", published.PartitionKey())
	// el payload se normaliza al tipo registrado: los campos desconocidos se pierden
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(published.Data, &data))
	assert.Equal(t, map[string]interface{}{"id": float64(3), "address": "0xabc"}, data)
}

func TestOutboxWorker_ProcessBatch_PublisherFails(t *testing.T) {
	repo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	testEvent := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: "score.updated", Payload: map[string]interface{}{}}

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("kafka is down")).Once()

	worker := NewOutboxWorker(repo, publisher, testRegistry(), time.Second, 10, zap.NewNop())
	assert.Equal(t, 0, worker.ProcessBatch(context.Background()))

	publisher.AssertCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_UnknownEventType(t *testing.T) {
	repo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	testEvent := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: "unregistered.event", Payload: map[string]interface{}{}}
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()

	worker := NewOutboxWorker(repo, publisher, testRegistry(), time.Second, 10, zap.NewNop())
	worker.ProcessBatch(context.Background())

	repo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxProcessed", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_BadPayload(t *testing.T) {
	repo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	testEvent := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: "score.updated", Payload: map[string]interface{}{"id": "not-a-number"}}
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()

	worker := NewOutboxWorker(repo, publisher, testRegistry(), time.Second, 10, zap.NewNop())
	assert.Equal(t, 0, worker.ProcessBatch(context.Background()))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_FetchFails(t *testing.T) {
	repo := new(mockOutboxRepository)
	publisher := new(mockPublisher)
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent(nil), errors.New("db down")).Once()

	worker := NewOutboxWorker(repo, publisher, testRegistry(), time.Second, 10, zap.NewNop())
	assert.Equal(t, 0, worker.ProcessBatch(context.Background()))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOutboxWorker_StartStopsOnCancel(t *testing.T) {
	polled := make(chan struct{}, 1)
	repo := new(mockOutboxRepository)
	repo.On("FetchPendingOutbox", mock.Anything, 10).
		Run(func(mock.Arguments) {
			select {
			case polled <- struct{}{}:
			default:
			}
		}).
		Return([]sharedDomain.OutboxEvent{}, nil)

	worker := NewOutboxWorker(repo, new(mockPublisher), testRegistry(), 5*time.Millisecond, 10, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("worker never polled")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
