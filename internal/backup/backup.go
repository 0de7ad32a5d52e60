// Package backup exports and imports the whole chat collection as a JSON or
// YAML document for backup and debugging.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
)

// Version is written into every export and checked on import.
const Version = 1

// ErrInvalidPayload wraps every decode or validation failure.
var ErrInvalidPayload = errors.New("invalid backup payload")

// Format selects the text encoding of a payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown backup format %q", s)
}

// Payload is the exported document.
type Payload struct {
	Version    int             `json:"version" yaml:"version"`
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Chats      data.Collection `json:"chats" yaml:"chats"`
}

// Encode renders c as a payload stamped with now.
func Encode(c data.Collection, format Format, now time.Time) ([]byte, error) {
	if c == nil {
		c = data.Collection{}
	}
	p := Payload{Version: Version, ExportedAt: now.UTC(), Chats: c}

	switch format {
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatJSON, "":
		return json.MarshalIndent(p, "", "  ")
	}
	return nil, fmt.Errorf("unknown backup format %q", format)
}

// Decode parses and validates a payload. A bare JSON array of chats, the raw
// persisted layout, is accepted as well.
func Decode(raw []byte, format Format) (data.Collection, error) {
	var p Payload
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	case FormatJSON, "":
		trimmed := bytes.TrimSpace(raw)
		if bytes.HasPrefix(trimmed, []byte("[")) {
			p.Version = Version
			if err := json.Unmarshal(trimmed, &p.Chats); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
			break
		}
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	default:
		return nil, fmt.Errorf("unknown backup format %q", format)
	}

	if p.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, p.Version)
	}
	if p.Chats == nil {
		p.Chats = data.Collection{}
	}
	if err := Validate(p.Chats); err != nil {
		return nil, err
	}
	return p.Chats, nil
}

// Validate checks the invariants an imported collection must already hold.
func Validate(c data.Collection) error {
	ids := make(map[string]bool, len(c))
	pairs := make(map[string]bool, len(c))

	for i := range c {
		chat := &c[i]
		if chat.ID == "" {
			return fmt.Errorf("%w: chat %d has no id", ErrInvalidPayload, i)
		}
		if ids[chat.ID] {
			return fmt.Errorf("%w: duplicate chat id %s", ErrInvalidPayload, chat.ID)
		}
		ids[chat.ID] = true

		if !chat.Category.Valid() {
			return fmt.Errorf("%w: chat %s: %v %q", ErrInvalidPayload, chat.ID, data.ErrInvalidCategory, chat.Category)
		}
		if chat.Status != data.StatusActive && chat.Status != data.StatusClosed {
			return fmt.Errorf("%w: chat %s has status %q", ErrInvalidPayload, chat.ID, chat.Status)
		}

		pair := chat.ConversationKey + "\x00" + string(chat.Category)
		if pairs[pair] {
			return fmt.Errorf("%w: more than one %s chat for key %q", ErrInvalidPayload, chat.Category, chat.ConversationKey)
		}
		pairs[pair] = true

		if chat.Messages == nil {
			chat.Messages = []data.Message{}
		}
		for j, m := range chat.Messages {
			if !m.Sender.Valid() {
				return fmt.Errorf("%w: chat %s message %d: %v %q", ErrInvalidPayload, chat.ID, j, data.ErrInvalidRole, m.Sender)
			}
			if m.Category != chat.Category {
				return fmt.Errorf("%w: chat %s message %d has category %q", ErrInvalidPayload, chat.ID, j, m.Category)
			}
			if m.ChatID != chat.ID {
				return fmt.Errorf("%w: chat %s message %d belongs to %q", ErrInvalidPayload, chat.ID, j, m.ChatID)
			}
			if j > 0 && m.Timestamp.Before(chat.Messages[j-1].Timestamp) {
				return fmt.Errorf("%w: chat %s message %d is older than the one before it", ErrInvalidPayload, chat.ID, j)
			}
		}
	}
	return nil
}
