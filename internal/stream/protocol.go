package stream

import (
	"encoding/json"
	"strings"

	apperrors "pattern-trader/internal/errors"
)

// Control message types sent by clients.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
)

// ClientMessage is a control message received from a connection.
type ClientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// Envelope is the frame delivered to subscribers of a channel.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

var pongFrame = []byte(`{"type":"pong"}`)

// parseClientMessage decodes and validates a control message.
func parseClientMessage(connID string, raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, apperrors.NewProtocolError(connID, "invalid JSON", err)
	}

	msg.Type = strings.TrimSpace(msg.Type)
	msg.Channel = strings.TrimSpace(msg.Channel)

	switch msg.Type {
	case "":
		return msg, apperrors.NewProtocolError(connID, "missing type", nil)
	case TypeSubscribe, TypeUnsubscribe:
		if msg.Channel == "" {
			return msg, apperrors.NewProtocolError(connID, msg.Type+" without channel", nil)
		}
	case TypePing:
	default:
		return msg, apperrors.NewProtocolError(connID, "unknown type "+msg.Type, nil)
	}
	return msg, nil
}

// encodeEnvelope serializes {"channel","data"}. Payloads that are already
// encoded JSON are embedded as-is.
func encodeEnvelope(channel string, payload any) ([]byte, error) {
	var data json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.Wrapf(err, "encode payload for %s", channel)
		}
		data = b
	}
	if !json.Valid(data) {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedMessage, "payload for %s is not valid JSON", channel)
	}
	return json.Marshal(Envelope{Channel: channel, Data: data})
}
