// Package handlers holds the notification-phase handlers registered with the
// notification dispatcher: reference enrichment and the provider send.
package handlers

import (
	"encoding/json"
	"fmt"

	"caseflow/internal/external"
	"caseflow/internal/types"
)

// Templates maps event type -> channel -> provider template ID. It is parsed
// once from NOTIFY_TEMPLATES_JSON and read-only afterwards.
type Templates map[types.EventType]map[external.Channel]string

// ParseTemplates decodes the template configuration, e.g.
//
//	{"hearingBooked": {"email": "tmpl-1", "sms": "tmpl-2"}}
//
// Unknown channels and empty template IDs are rejected.
func ParseTemplates(raw string) (Templates, error) {
	var parsed Templates
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("notification templates: %w", err)
	}
	for event, channels := range parsed {
		for channel, id := range channels {
			if channel != external.ChannelEmail && channel != external.ChannelSMS {
				return nil, fmt.Errorf("notification templates: %s: unknown channel %q", event, channel)
			}
			if id == "" {
				return nil, fmt.Errorf("notification templates: %s/%s: empty template id", event, channel)
			}
		}
	}
	if parsed == nil {
		parsed = Templates{}
	}
	return parsed, nil
}

// Resolve returns the template for event on channel.
func (t Templates) Resolve(event types.EventType, channel external.Channel) (string, bool) {
	id, ok := t[event][channel]
	return id, ok
}

// Has reports whether any channel is configured for event.
func (t Templates) Has(event types.EventType) bool {
	return len(t[event]) > 0
}
