package push

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Event names used on the wire.
const (
	EventJoinUserRoom = "join-user-room"
	EventNotification = "notification"
)

// Envelope is a single websocket frame: an event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for event.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// URLFromAPI derives the websocket endpoint from the API base URL: same
// host, ws or wss scheme, and the given path.
func URLFromAPI(apiBase, path string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parsing API url %q: %w", apiBase, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported API scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("API url %q has no host", apiBase)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String(), nil
}
