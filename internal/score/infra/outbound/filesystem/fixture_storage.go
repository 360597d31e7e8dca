package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davicafu/scoreregistry/internal/score/domain"
)

// ScoreFixture es un score a registrar tal y como aparece en el fichero.
type ScoreFixture struct {
	ScorerID  int64                  `json:"scorer_id"`
	Address   string                 `json:"address"`
	Score     decimal.Decimal        `json:"score"`
	Status    string                 `json:"status,omitempty"`
	Evidence  map[string]interface{} `json:"evidence,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Fixture son los datos de arranque: comunidades y scores.
type Fixture struct {
	Communities []*domain.Community `json:"communities"`
	Scores      []ScoreFixture      `json:"scores"`
}

// Updates convierte los scores del fichero en entradas del camino de escritura.
func (f *Fixture) Updates() []domain.ScoreUpdate {
	out := make([]domain.ScoreUpdate, 0, len(f.Scores))
	for _, s := range f.Scores {
		out = append(out, domain.ScoreUpdate{
			CommunityID: s.ScorerID,
			Address:     s.Address,
			Score:       s.Score,
			Status:      s.Status,
			Evidence:    s.Evidence,
			Error:       s.Error,
			Timestamp:   s.Timestamp,
		})
	}
	return out
}

// JSONFixtureStorage es un adaptador outbound que lee y escribe fixtures en un fichero JSON.
type JSONFixtureStorage struct {
	filePath string
	mu       sync.Mutex
}

func NewJSONFixtureStorage(filePath string) *JSONFixtureStorage {
	return &JSONFixtureStorage{filePath: filePath}
}

// Load lee el fichero. Un fichero inexistente o vacío es un fixture vacío.
func (s *JSONFixtureStorage) Load(ctx context.Context) (*Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Fixture{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return &Fixture{}, nil
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", s.filePath, err)
	}
	return &f, nil
}

// Save escribe (sobrescribiendo) el fichero completo.
func (s *JSONFixtureStorage) Save(ctx context.Context, f *Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

// SampleFixture es el fichero que genera `seed --init`.
func SampleFixture(now time.Time) *Fixture {
	now = now.UTC().Truncate(time.Second)
	return &Fixture{
		Communities: []*domain.Community{{ID: 1, AccountID: 1, Name: "default"}},
		Scores: []ScoreFixture{
			{ScorerID: 1, Address: "0x0000000000000000000000000000000000000001", Score: decimal.RequireFromString("12.5"), Evidence: map[string]interface{}{"rawScore": "12.5", "threshold": "20"}, Timestamp: now.Add(-2 * time.Hour)},
			{ScorerID: 1, Address: "0x0000000000000000000000000000000000000002", Score: decimal.RequireFromString("31"), Evidence: map[string]interface{}{"rawScore": "31", "threshold": "20"}, Timestamp: now.Add(-time.Hour)},
			{ScorerID: 1, Address: "0x0000000000000000000000000000000000000001", Score: decimal.RequireFromString("22.75"), Evidence: map[string]interface{}{"rawScore": "22.75", "threshold": "20"}, Timestamp: now},
		},
	}
}
