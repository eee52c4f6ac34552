package sqlutil

import (
	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable column types

// ToNullRawMessage wraps a JSON document for a nullable jsonb column.
// Empty input is stored as NULL.
func ToNullRawMessage(data []byte) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: data, Valid: len(data) > 0}
}

// FromNullRawMessage returns the JSON document, or nil for NULL.
func FromNullRawMessage(val pqtype.NullRawMessage) []byte {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
