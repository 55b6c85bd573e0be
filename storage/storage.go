// Package storage persists wallet chain state. The sync actor commits rewind checkpoints (and
// whatever else the wallet engine flushes) as small serialized records under string keys; this
// package provides that key/value surface with a durable filesystem backend and an in-memory
// backend for tests.
package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no record exists under a key. A fresh wallet has no persisted
// checkpoints, so callers treat it as an empty state rather than a failure.
var ErrNotFound = errors.New("not found")

// Serializer writes a record's canonical byte form.
type Serializer interface {
	Serialize(io.Writer) error
}

// Deserializer restores a record from its canonical byte form.
type Deserializer interface {
	Deserialize(io.Reader) error
}

// Savable is a record that knows its own key.
type Savable interface {
	Serializer
	Path() string
}

// Reader retrieves records.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Writer adds or replaces records. A Write must be atomic: a crash mid-write may lose the new
// record but must never leave a corrupt one, since the sync actor rewinds through whatever
// checkpoint list it reads back.
type Writer interface {
	Write(ctx context.Context, key string, data []byte) error
}

// Store is the full surface a wallet state backend provides.
type Store interface {
	Reader
	Writer

	Remove(ctx context.Context, key string) error

	// List returns the keys under a prefix, one per persisted record.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Save serializes a record and writes it under its key.
func Save(ctx context.Context, store Writer, record Savable) error {
	buf := &bytes.Buffer{}
	if err := record.Serialize(buf); err != nil {
		return errors.Wrap(err, "serialize")
	}

	if err := store.Write(ctx, record.Path(), buf.Bytes()); err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

// Load reads the record under key and restores it into record.
func Load(ctx context.Context, store Reader, key string, record Deserializer) error {
	data, err := store.Read(ctx, key)
	if err != nil {
		return errors.Wrap(err, "read")
	}

	if err := record.Deserialize(bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "deserialize")
	}

	return nil
}
