// Package realtime turns store change notifications into live dashboard
// snapshots. Changes flow Listener -> (Redis) -> Hub -> Dashboard -> websocket.
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Kind string

const (
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

// Change is one row event. The localfix_notify_change trigger sends only
// Kind, Table and RowID; the Listener fills Row before publishing.
type Change struct {
	Kind   Kind            `json:"kind"`
	Table  string          `json:"table"`
	RowID  string          `json:"id,omitempty"`
	Row    json.RawMessage `json:"row,omitempty"`
	OldRow json.RawMessage `json:"old_row,omitempty"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Decode unmarshals the new row into v.
func (c Change) Decode(v any) error {
	if !present(c.Row) {
		return fmt.Errorf("%s change on %s has no row", c.Kind, c.Table)
	}
	return json.Unmarshal(c.Row, v)
}

// ID returns the id of the affected row.
func (c Change) ID() string {
	if c.RowID != "" {
		return c.RowID
	}
	var ref struct {
		ID string `json:"id"`
	}
	for _, raw := range []json.RawMessage{c.Row, c.OldRow} {
		if present(raw) && json.Unmarshal(raw, &ref) == nil && ref.ID != "" {
			return ref.ID
		}
	}
	return ""
}

// ParseChange decodes a notification payload.
func ParseChange(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	switch c.Kind {
	case Insert, Update, Delete:
	default:
		return Change{}, fmt.Errorf("unknown change kind %q", c.Kind)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("change without table")
	}
	return c, nil
}
