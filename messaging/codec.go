package messaging

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrMalformedMessage is returned when a payload cannot be decoded into the expected message type.
var ErrMalformedMessage = errors.New("malformed message")

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes a message as a JSON body.
func Marshal(msg any) ([]byte, error) {
	payload, err := jsonAPI.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", msg, err)
	}

	return payload, nil
}

// Unmarshal decodes a JSON body into a message of type T.
// Empty bodies, JSON null and undecodable bodies fail with ErrMalformedMessage.
func Unmarshal[T any](payload []byte) (T, error) {
	var msg T

	if len(payload) == 0 {
		return msg, errors.Join(ErrMalformedMessage, errors.New("empty payload"))
	}

	if !jsonAPI.Valid(payload) || jsonAPI.Get(payload).ValueType() != jsoniter.ObjectValue {
		return msg, errors.Join(ErrMalformedMessage, fmt.Errorf("payload is not a JSON object: %.64q", payload))
	}

	if err := jsonAPI.Unmarshal(payload, &msg); err != nil {
		return msg, errors.Join(ErrMalformedMessage, err)
	}

	return msg, nil
}
