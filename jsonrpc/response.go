package jsonrpc

import "encoding/json"

// Result represents an arbitrary JSON-RPC result value
type Result interface{}

// Response represents a JSON-RPC response object
type Response struct {
	Version string `json:"jsonrpc"`
	Result  Result `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      ID     `json:"id"`
}

// NewResponse creates a new Response object
func NewResponse(id interface{}, result Result, err *Error) Response {
	respID, _ := NewID(id)
	if !respID.IsSet() {
		respID = NullID
	}

	return Response{
		Version: Version,
		ID:      respID,
		Result:  result,
		Error:   err,
	}
}

// IsResponseEnvelope reports whether data is a JSON object shaped like a
// JSON-RPC response: jsonrpc "2.0", an id member, and a result or error member.
func IsResponseEnvelope(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != Version {
		return false
	}
	if _, ok := fields["id"]; !ok {
		return false
	}
	_, hasResult := fields["result"]
	_, hasError := fields["error"]
	return hasResult || hasError
}
