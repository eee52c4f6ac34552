// Package docstore defines the remote document service that carries a hosted
// session's playback state from the host to its guests.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection is the logical namespace every session document lives in.
const Collection = "HostSession"

var (
	// ErrNotFound is returned by Get when no document exists for the key.
	ErrNotFound = errors.New("document not found")
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("document store closed")
)

// Fields is the untyped content of a document, as the remote service sees it.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Update is one delivery on a watch: either the latest document content or a
// transient error. Errors do not end the watch.
type Update struct {
	Fields Fields
	Err    error
}

// Watcher streams committed changes of one document in commit order.
type Watcher interface {
	Updates() <-chan Update
	Stop() error
}

// Store reads, writes and watches session documents keyed by session ID.
type Store interface {
	Get(ctx context.Context, key string) (Fields, error)
	Set(ctx context.Context, key string, fields Fields) error
	Watch(ctx context.Context, key string) (Watcher, error)
}

// EncodeFields serializes a document for byte-oriented backends.
func EncodeFields(fields Fields) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeFields parses a document produced by EncodeFields. Numbers are kept as
// json.Number so integral and fractional values stay distinguishable.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}
