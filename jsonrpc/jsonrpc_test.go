package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_ID(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantSet      bool
		wantValue    interface{}
		notification bool
	}{
		{
			name:      "numeric id",
			input:     `{"jsonrpc":"2.0","method":"tools/list","id":1}`,
			wantSet:   true,
			wantValue: 1,
		},
		{
			name:      "string id",
			input:     `{"jsonrpc":"2.0","method":"tools/list","id":"abc"}`,
			wantSet:   true,
			wantValue: "abc",
		},
		{
			name:      "null id",
			input:     `{"jsonrpc":"2.0","method":"tools/list","id":null}`,
			wantSet:   true,
			wantValue: nil,
		},
		{
			name:         "absent id",
			input:        `{"jsonrpc":"2.0","method":"tools/list"}`,
			notification: true,
		},
		{
			name:         "notification method with id",
			input:        `{"jsonrpc":"2.0","method":"notifications/cancelled","id":3}`,
			wantSet:      true,
			wantValue:    3,
			notification: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.input), &req))
			assert.Equal(t, tt.wantSet, req.ID.IsSet())
			assert.Equal(t, tt.wantValue, req.ID.Value())
			assert.Equal(t, tt.notification, req.IsNotification())
		})
	}
}

func TestRequest_MarshalNotification(t *testing.T) {
	data, err := json.Marshal(Request{Version: Version, Method: "notifications/initialized"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, string(data))

	data, err = json.Marshal(NewRequest("tools/list", nil, 7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"tools/list","id":7}`, string(data))
}

func TestResponse_NullID(t *testing.T) {
	data, err := json.Marshal(NewResponse(nil, nil, NewErrorf(ErrParse, "Bridge parse error: %s", "bad")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Bridge parse error: bad"},"id":null}`, string(data))
}

func TestIsResponseEnvelope(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`{"jsonrpc":"2.0","id":1,"result":{}}`, true},
		{`{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"x"}}`, true},
		{`{"jsonrpc":"2.0","result":{}}`, false},
		{`{"jsonrpc":"1.0","id":1,"result":{}}`, false},
		{`{"jsonrpc":"2.0","id":1}`, false},
		{`[1,2]`, false},
		{`not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResponseEnvelope([]byte(tt.input)))
		})
	}
}

func TestNewError(t *testing.T) {
	err := NewError(ErrServer, nil)
	assert.Equal(t, "Server error", err.Message)
	assert.Equal(t, "-32000: Server error", err.Error())

	err = NewError(ErrorCode(-32050), nil)
	assert.Equal(t, "Server error", err.Message)

	err = NewError(ErrorCode(1), nil)
	assert.Equal(t, "Unknown error", err.Message)
}
