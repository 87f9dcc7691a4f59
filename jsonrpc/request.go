package jsonrpc

import (
	"encoding/json"
	"strings"
)

// Version is the JSON-RPC protocol version
const Version = "2.0"

// Request represents a JSON-RPC request or notification object
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

// NewRequest creates a new Request object
func NewRequest(method string, params json.RawMessage, id interface{}) Request {
	reqID, _ := NewID(id)

	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
		ID:      reqID,
	}
}

// IsNotification reports whether the request expects no response: it carries
// no id member, or its method lives in the notifications/ namespace.
func (r Request) IsNotification() bool {
	return !r.ID.IsSet() || strings.HasPrefix(r.Method, "notifications/")
}

// MarshalJSON omits the id member for notifications
func (r Request) MarshalJSON() ([]byte, error) {
	type wire struct {
		Version string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
		ID      *ID             `json:"id,omitempty"`
	}
	w := wire{Version: r.Version, Method: r.Method, Params: r.Params}
	if r.ID.IsSet() {
		id := r.ID
		w.ID = &id
	}
	return json.Marshal(w)
}
