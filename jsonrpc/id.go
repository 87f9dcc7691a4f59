package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID represents a JSON-RPC ID, which may be a string, a number or null.
// The zero value is an absent ID, which marks a notification.
type ID struct {
	value interface{}
	set   bool
}

// NullID is an ID that is present but null
var NullID = ID{set: true}

// NewID creates a JSON-RPC ID from a string, number or nil
func NewID(id interface{}) (ID, error) {
	switch v := id.(type) {
	case ID:
		return v, nil
	case string:
		return ID{value: v, set: true}, nil
	case int:
		return ID{value: v, set: true}, nil
	case int32:
		return ID{value: int(v), set: true}, nil
	case int64:
		return ID{value: int(v), set: true}, nil
	case float32:
		return numberID(float64(v)), nil
	case float64:
		return numberID(v), nil
	case nil:
		return NullID, nil
	default:
		return ID{}, fmt.Errorf("id must be string, number or null, got %T", id)
	}
}

func numberID(v float64) ID {
	if v == float64(int(v)) {
		return ID{value: int(v), set: true}
	}
	return ID{value: v, set: true}
}

func (id ID) Value() interface{} {
	return id.value
}

// IsNil reports whether the ID is null or absent
func (id ID) IsNil() bool {
	return id.value == nil
}

// IsSet reports whether the ID member was present, even if null
func (id ID) IsSet() bool {
	return id.set
}

// Equal compares two IDs for equality
func (id ID) Equal(other interface{}) bool {
	switch v := other.(type) {
	case ID:
		return id.value == v.value
	case nil:
		return id.value == nil
	default:
		o, err := NewID(v)
		if err != nil {
			return false
		}
		return id.value == o.value
	}
}

var _ fmt.GoStringer = ID{}

// GoString implements fmt.GoStringer
func (id ID) GoString() string {
	switch v := id.value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", v)
	}
}

var _ json.Marshaler = ID{}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

var _ json.Unmarshaler = &ID{}

// UnmarshalJSON implements json.Unmarshaler. It is called for an explicit
// null as well, which leaves the ID set but nil.
func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*id = NullID
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		*id = ID{value: v, set: true}
		return nil
	case float64: // JSON numbers are decoded as float64
		*id = numberID(v)
		return nil
	default:
		return fmt.Errorf("id must be string, number or null, got %T", raw)
	}
}
