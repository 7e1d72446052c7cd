package chessdto

import (
	"encoding/json"
	"fmt"
)

// Session protocol events.
const (
	EventInitiate        = "initiate"
	EventRedirect        = "redirect"
	EventSelectionDone   = "selection_done"
	EventReady           = "ready"
	EventPrepare         = "prepare"
	EventPreparationDone = "preparation_done"
	EventStart           = "start"
	EventPlayerMove      = "player_move"
	EventOtherPlayerMove = "other_player_move"
	EventGameReset       = "game_reset"
)

// Envelope is one websocket frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals Data into v. An absent payload is an error.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return DomainError{Code: CodeMissingPayload, Message: e.Event + ": missing payload"}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return DomainError{Code: CodeMalformedPayload, Message: fmt.Sprintf("%s: %v", e.Event, err)}
	}
	return nil
}
