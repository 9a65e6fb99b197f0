package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewMessage encodes an action and its payload.
func NewMessage(action string, payload interface{}) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket message")
		return nil
	}
	return b
}

// NewErrorMessage creates a standardized error message.
func NewErrorMessage(errMsg string) []byte {
	return NewMessage("error", map[string]string{"message": errMsg})
}

// NewPongMessage answers a client ping.
func NewPongMessage() []byte {
	return NewMessage("pong", nil)
}
