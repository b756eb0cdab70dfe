// Package store holds helpers shared by the SQL store implementations.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/ArionMiles/notispend/pkg/api"
)

// EncodeExtras marshals the nested notification fields for storage.
// Empty values encode as nil so they are stored as NULL.
func EncodeExtras(n api.Notification) (messages, media []byte, err error) {
	if len(n.Messages) > 0 {
		if messages, err = json.Marshal(n.Messages); err != nil {
			return nil, nil, fmt.Errorf("encoding messages: %w", err)
		}
	}
	if n.MediaInfo != nil {
		if media, err = json.Marshal(n.MediaInfo); err != nil {
			return nil, nil, fmt.Errorf("encoding media info: %w", err)
		}
	}
	return messages, media, nil
}

// DecodeExtras is the inverse of EncodeExtras.
func DecodeExtras(n *api.Notification, messages, media []byte) error {
	n.Messages = nil
	n.MediaInfo = nil

	if len(messages) > 0 && string(messages) != "null" {
		if err := json.Unmarshal(messages, &n.Messages); err != nil {
			return fmt.Errorf("decoding messages: %w", err)
		}
	}
	if len(media) > 0 && string(media) != "null" {
		n.MediaInfo = &api.MediaReference{}
		if err := json.Unmarshal(media, n.MediaInfo); err != nil {
			return fmt.Errorf("decoding media info: %w", err)
		}
	}
	return nil
}

// Nullable turns an empty byte slice into an untyped nil query argument.
func Nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
