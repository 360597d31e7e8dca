package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	ScoreUpdated = "score.updated"
)

const ScoreTopic = "score"

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		ScoreUpdated: {
			Type:  reflect.TypeOf(ScoreEvent{}),
			Topic: ScoreTopic,
		},
	}
}
