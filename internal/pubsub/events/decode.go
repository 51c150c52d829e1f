package events

import (
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

// Decode parses a pubsub command message. Commands are JSON with a JSON5
// tolerance for controller-side sloppiness (trailing commas, single quotes).
func Decode(message []byte) *Event {
	m := make(map[string]interface{})
	if err := json5.Unmarshal(message, &m); err != nil {
		log.Tracef("failed to decode pubsub message: %s", err)
		return &Event{}
	}

	id, ok := m["id"].(string)
	if !ok {
		return &Event{}
	}

	e := &Event{Id: id}

	switch id {
	case StartRecordingKey:
		s := &StartRecording{}
		if err := json5.Unmarshal(message, s); err == nil {
			e.Data = s
		}
	case StopRecordingKey:
		s := &StopRecording{}
		if err := json5.Unmarshal(message, s); err == nil {
			e.Data = s
		}
	case SetMixLayoutKey:
		s := &SetMixLayout{}
		if err := json5.Unmarshal(message, s); err == nil {
			e.Data = s
		}
	case GetRecorderStatusKey:
		s := &GetRecorderStatus{}
		if err := json5.Unmarshal(message, s); err == nil {
			e.Data = s
		}
	}

	return e
}
